package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/apperr"
)

func TestApplyPatchFieldGranularity(t *testing.T) {
	p := &models.UserProfile{
		UserID:       1,
		FullName:     "Ada",
		FieldOfStudy: "Mathematics",
		Interests:    datatypes.NewJSONSlice([]string{"calculus"}),
	}
	level := models.LevelMaster
	patch := &models.ProfilePatch{
		AcademicLevel: &level,
		Interests:     &[]string{"calculus", "topology"},
	}

	err := applyPatch(p, patch)
	assert.NoError(t, err)
	// nil字段保持原值，非nil字段整体覆盖
	assert.Equal(t, "Ada", p.FullName)
	assert.Equal(t, "Mathematics", p.FieldOfStudy)
	assert.Equal(t, models.LevelMaster, p.AcademicLevel)
	assert.Equal(t, []string{"calculus", "topology"}, []string(p.Interests))
}

func TestApplyPatchRejectsUnknownEnums(t *testing.T) {
	badLevel := models.AcademicLevel("postdoc")
	err := applyPatch(&models.UserProfile{}, &models.ProfilePatch{AcademicLevel: &badLevel})
	assert.True(t, apperr.Has(err, apperr.TagConflictingEnum))

	badStyle := models.LearningStyle("osmosis")
	err = applyPatch(&models.UserProfile{}, &models.ProfilePatch{LearningStyle: &badStyle})
	assert.True(t, apperr.Has(err, apperr.TagConflictingEnum))
}

func TestApplyPatchNilIsNoop(t *testing.T) {
	p := &models.UserProfile{UserID: 2, FullName: "Bo"}
	assert.NoError(t, applyPatch(p, nil))
	assert.Equal(t, "Bo", p.FullName)
}

func TestPatchColumnsOnlyTouchedFields(t *testing.T) {
	name := "Ada"
	patch := &models.ProfilePatch{
		FullName:  &name,
		Interests: &[]string{"calculus"},
	}

	cols := patchColumns(patch)
	// 未触及的列不回写，并发补丁不同字段时互不覆盖
	assert.Len(t, cols, 2)
	assert.Equal(t, "Ada", cols["full_name"])
	assert.Equal(t, datatypes.NewJSONSlice([]string{"calculus"}), cols["interests"])
	assert.NotContains(t, cols, "bio")
	assert.NotContains(t, cols, "is_active")

	assert.Empty(t, patchColumns(nil))
}

func TestValidateProfileExpertiseKeys(t *testing.T) {
	p := &models.UserProfile{
		Interests: datatypes.NewJSONSlice([]string{"Machine Learning"}),
		Strengths: datatypes.NewJSONSlice([]string{"statistics"}),
		Expertise: datatypes.NewJSONType(map[string]int{"machine learning": 4, "statistics": 3}),
	}
	// 归一化后命中兴趣或强项即可
	assert.NoError(t, validateProfile(p))

	p.Expertise = datatypes.NewJSONType(map[string]int{"quantum computing": 5})
	err := validateProfile(p)
	assert.True(t, apperr.Has(err, apperr.TagIntegrityViolation))
}

func TestValidateProfileRecomputesLevel(t *testing.T) {
	p := &models.UserProfile{Points: 1200, Level: 1}
	assert.NoError(t, validateProfile(p))
	assert.Equal(t, 3, p.Level)

	p.Points = -1
	err := validateProfile(p)
	assert.True(t, apperr.Has(err, apperr.TagIntegrityViolation))
}

func TestTranslateDBErr(t *testing.T) {
	assert.True(t, apperr.Has(translateDBErr(gorm.ErrRecordNotFound, "profile"), apperr.TagNotFound))
	assert.True(t, apperr.Has(translateDBErr(context.DeadlineExceeded, "profile"), apperr.TagTimeout))
	assert.True(t, apperr.Has(translateDBErr(context.Canceled, "profile"), apperr.TagTimeout))
	assert.True(t, apperr.Has(translateDBErr(errors.New("connection refused"), "profile"), apperr.TagUpstreamUnavailable))
}
