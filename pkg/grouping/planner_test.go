package grouping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/apperr"
	"github.com/BinLe1988/study-match/pkg/logger"
	"github.com/BinLe1988/study-match/pkg/scoring"
	"github.com/BinLe1988/study-match/pkg/store"
)

// memProfiles 内存画像存储，仅实现编排器用到的读路径
type memProfiles struct {
	profiles map[uint]*models.UserProfile
}

func (m *memProfiles) Get(_ context.Context, userID uint) (*models.UserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, apperr.New(apperr.TagNotFound, "profile not found")
	}
	return p, nil
}

func (m *memProfiles) Upsert(_ context.Context, userID uint, _ *models.ProfilePatch) (*models.UserProfile, error) {
	return m.profiles[userID], nil
}

func (m *memProfiles) Scan(_ context.Context, _ store.ProfileFilter) ([]*models.UserProfile, error) {
	var out []*models.UserProfile
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProfiles) BulkGet(_ context.Context, ids []uint) (map[uint]*models.UserProfile, error) {
	out := make(map[uint]*models.UserProfile)
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func mlStudent(id uint, level models.AcademicLevel, extra ...string) *models.UserProfile {
	interests := append([]string{"machine learning"}, extra...)
	return &models.UserProfile{
		UserID:        id,
		FieldOfStudy:  "Computer Science",
		AcademicLevel: level,
		LearningStyle: models.StyleMultimodal,
		Languages:     datatypes.NewJSONSlice([]string{"en"}),
		Interests:     datatypes.NewJSONSlice(interests),
		IsActive:      true,
	}
}

func newTestPlanner(t *testing.T, profiles *memProfiles) *Planner {
	t.Helper()
	log, err := logger.New("development")
	assert.NoError(t, err)
	scorer := scoring.NewScorer(scoring.DefaultWeights())
	return NewPlanner(profiles, scorer, Options{DefaultSize: 5, BulkTimeout: 5 * time.Second}, log)
}

func poolIDs(n int) []uint {
	ids := make([]uint, n)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	return ids
}

func TestPlanGroupsSplitsPoolEvenly(t *testing.T) {
	// 8人池、目标4人：两组各4人，凝聚度可观
	levels := []models.AcademicLevel{
		models.LevelHighSchool, models.LevelBachelor, models.LevelMaster, models.LevelPhD,
		models.LevelHighSchool, models.LevelBachelor, models.LevelMaster, models.LevelPhD,
	}
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{}}
	for i, lvl := range levels {
		id := uint(i + 1)
		profiles.profiles[id] = mlStudent(id, lvl)
	}
	planner := newTestPlanner(t, profiles)

	plan, err := planner.PlanGroups(context.Background(), "machine learning", poolIDs(8), 4, 0, "")
	assert.NoError(t, err)
	assert.Len(t, plan.Groups, 2)
	assert.Empty(t, plan.Unassigned)

	seen := map[uint]bool{}
	for _, g := range plan.Groups {
		assert.Len(t, g.Members, 4)
		assert.GreaterOrEqual(t, g.Cohesion, 0.3)
		for _, id := range g.Members {
			assert.False(t, seen[id], "member assigned twice")
			seen[id] = true
		}
	}
	assert.Len(t, seen, 8)
}

func TestPlanGroupsTopicPreFilter(t *testing.T) {
	// 8人中只有6人沾主题：一组4人，2人进不满残余下限而返还
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{}}
	levels := []models.AcademicLevel{
		models.LevelHighSchool, models.LevelBachelor, models.LevelMaster,
		models.LevelPhD, models.LevelHighSchool, models.LevelMaster,
	}
	for i, lvl := range levels {
		id := uint(i + 1)
		profiles.profiles[id] = mlStudent(id, lvl)
	}
	// 两人与主题无关：兴趣和学科都搭不上
	for _, id := range []uint{7, 8} {
		profiles.profiles[id] = &models.UserProfile{
			UserID:        id,
			FieldOfStudy:  "History",
			AcademicLevel: models.LevelBachelor,
			Interests:     datatypes.NewJSONSlice([]string{"baroque art"}),
			IsActive:      true,
		}
	}
	planner := newTestPlanner(t, profiles)

	plan, err := planner.PlanGroups(context.Background(), "machine learning", poolIDs(8), 4, 0, "")
	assert.NoError(t, err)
	assert.Len(t, plan.Groups, 1)
	assert.Len(t, plan.Groups[0].Members, 4)
	assert.Len(t, plan.Unassigned, 2)
	for _, id := range plan.Unassigned {
		assert.NotContains(t, []uint{7, 8}, id)
	}
}

func TestPlanGroupsPoolSmallerThanTarget(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: mlStudent(1, models.LevelBachelor),
		2: mlStudent(2, models.LevelMaster),
		3: mlStudent(3, models.LevelPhD),
		4: mlStudent(4, models.LevelHighSchool),
	}}
	planner := newTestPlanner(t, profiles)

	// 不足一组但够残余下限：全员成一组
	plan, err := planner.PlanGroups(context.Background(), "machine learning", []uint{1, 2, 3, 4}, 5, 0, "")
	assert.NoError(t, err)
	assert.Len(t, plan.Groups, 1)
	assert.Equal(t, []uint{1, 2, 3, 4}, plan.Groups[0].Members)

	// 连残余下限都不够：全部返还
	plan, err = planner.PlanGroups(context.Background(), "machine learning", []uint{1, 2}, 5, 0, "")
	assert.NoError(t, err)
	assert.Empty(t, plan.Groups)
	assert.Equal(t, []uint{1, 2}, plan.Unassigned)
}

func TestPlanGroupsDeterministic(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{}}
	levels := []models.AcademicLevel{
		models.LevelHighSchool, models.LevelBachelor, models.LevelMaster, models.LevelPhD,
		models.LevelAssociate, models.LevelBachelor, models.LevelMaster, models.LevelPhD,
		models.LevelHighSchool, models.LevelBachelor,
	}
	for i, lvl := range levels {
		id := uint(i + 1)
		profiles.profiles[id] = mlStudent(id, lvl)
	}
	planner := newTestPlanner(t, profiles)

	first, err := planner.PlanGroups(context.Background(), "machine learning", poolIDs(10), 5, 0, "")
	assert.NoError(t, err)
	second, err := planner.PlanGroups(context.Background(), "machine learning", poolIDs(10), 5, 0, "")
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPlanGroupsMaxGroupsCap(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{}}
	for i := 0; i < 12; i++ {
		id := uint(i + 1)
		lvl := []models.AcademicLevel{models.LevelHighSchool, models.LevelBachelor, models.LevelMaster, models.LevelPhD}[i%4]
		profiles.profiles[id] = mlStudent(id, lvl)
	}
	planner := newTestPlanner(t, profiles)

	// 配额对残余组同样生效，塞不进去的成员返还
	plan, err := planner.PlanGroups(context.Background(), "machine learning", poolIDs(12), 4, 2, "")
	assert.NoError(t, err)
	assert.Len(t, plan.Groups, 2)
	assert.Len(t, plan.Unassigned, 4)

	// 不设配额时全员按目标规模分满三组
	plan, err = planner.PlanGroups(context.Background(), "machine learning", poolIDs(12), 4, 0, "")
	assert.NoError(t, err)
	assert.Len(t, plan.Groups, 3)
	assert.Empty(t, plan.Unassigned)
}

func TestPlanGroupsCarriesDifficulty(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: mlStudent(1, models.LevelBachelor),
		2: mlStudent(2, models.LevelMaster),
		3: mlStudent(3, models.LevelPhD),
	}}
	planner := newTestPlanner(t, profiles)

	plan, err := planner.PlanGroups(context.Background(), "machine learning", []uint{1, 2, 3}, 3, 0, models.DifficultyAdvanced)
	assert.NoError(t, err)
	assert.Len(t, plan.Groups, 1)
	assert.Equal(t, models.DifficultyAdvanced, plan.Groups[0].Difficulty)

	_, err = planner.PlanGroups(context.Background(), "machine learning", []uint{1, 2, 3}, 3, 0, models.Difficulty("impossible"))
	assert.True(t, apperr.Has(err, apperr.TagValidationFailed))
}

func TestPlanGroupsInvalidTargetSize(t *testing.T) {
	planner := newTestPlanner(t, &memProfiles{profiles: map[uint]*models.UserProfile{}})

	_, err := planner.PlanGroups(context.Background(), "ml", []uint{1}, 2, 0, "")
	assert.True(t, apperr.Has(err, apperr.TagValidationFailed))

	_, err = planner.PlanGroups(context.Background(), "ml", []uint{1}, 13, 0, "")
	assert.True(t, apperr.Has(err, apperr.TagValidationFailed))
}

func TestPlanGroupsCancellation(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: mlStudent(1, models.LevelBachelor),
		2: mlStudent(2, models.LevelMaster),
		3: mlStudent(3, models.LevelPhD),
	}}
	planner := newTestPlanner(t, profiles)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := planner.PlanGroups(ctx, "machine learning", []uint{1, 2, 3}, 3, 0, "")
	assert.Error(t, err)
}
