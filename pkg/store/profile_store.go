package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/apperr"
	"github.com/BinLe1988/study-match/pkg/feature"
)

// ProfileFilter 画像扫描条件，零值字段不参与过滤
type ProfileFilter struct {
	IsActive      *bool
	FieldOfStudy  string
	AcademicLevel models.AcademicLevel
	InterestsAny  []string
}

// ProfileStore 画像存储契约
type ProfileStore interface {
	// Get 按用户查询画像，缺失返回 NotFound
	Get(ctx context.Context, userID uint) (*models.UserProfile, error)
	// Upsert 按字段粒度更新画像，不存在时创建
	Upsert(ctx context.Context, userID uint, patch *models.ProfilePatch) (*models.UserProfile, error)
	// Scan 按条件扫描画像
	Scan(ctx context.Context, f ProfileFilter) ([]*models.UserProfile, error)
	// BulkGet 批量查询，结果按查询顺序遍历时用入参ids迭代
	BulkGet(ctx context.Context, ids []uint) (map[uint]*models.UserProfile, error)
}

// GormProfileStore 基于gorm的画像存储
type GormProfileStore struct {
	db *gorm.DB
}

// NewGormProfileStore 创建画像存储
func NewGormProfileStore(db *gorm.DB) *GormProfileStore {
	return &GormProfileStore{db: db}
}

// Get 按用户查询画像
func (s *GormProfileStore) Get(ctx context.Context, userID uint) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, translateDBErr(err, "profile")
	}
	return &p, nil
}

// Upsert 按文档原子更新画像，字段级后写覆盖
// 已有行只回写补丁触及的列，并发补丁不同字段时互不覆盖
func (s *GormProfileStore) Upsert(ctx context.Context, userID uint, patch *models.ProfilePatch) (*models.UserProfile, error) {
	var result *models.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.UserProfile
		created := false
		err := tx.Where("user_id = ?", userID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			p = models.UserProfile{
				UserID:     userID,
				IsActive:   true,
				Level:      1,
				CreatedAt:  time.Now(),
				LastActive: time.Now(),
			}
		} else if err != nil {
			return translateDBErr(err, "profile")
		}

		if err := applyPatch(&p, patch); err != nil {
			return err
		}
		if err := validateProfile(&p); err != nil {
			return err
		}
		p.LastActive = time.Now()

		if created {
			if err := tx.Create(&p).Error; err != nil {
				return translateDBErr(err, "profile")
			}
			result = &p
			return nil
		}

		cols := patchColumns(patch)
		cols["level"] = p.Level
		cols["last_active"] = p.LastActive
		err = tx.Model(&models.UserProfile{}).
			Where("user_id = ?", userID).
			Updates(cols).Error
		if err != nil {
			return translateDBErr(err, "profile")
		}
		result = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Scan 按条件扫描画像
// interests_any 在内存中过滤：标签集是JSON列，跨驱动无法统一下推
func (s *GormProfileStore) Scan(ctx context.Context, f ProfileFilter) ([]*models.UserProfile, error) {
	q := s.db.WithContext(ctx).Model(&models.UserProfile{})
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if f.FieldOfStudy != "" {
		q = q.Where("field_of_study = ?", f.FieldOfStudy)
	}
	if f.AcademicLevel != "" {
		q = q.Where("academic_level = ?", f.AcademicLevel)
	}

	var rows []*models.UserProfile
	if err := q.Order("user_id asc").Find(&rows).Error; err != nil {
		return nil, translateDBErr(err, "profiles")
	}

	if len(f.InterestsAny) == 0 {
		return rows, nil
	}
	want := feature.NormalizeTagSet(f.InterestsAny)
	var filtered []*models.UserProfile
	for _, p := range rows {
		for _, tag := range p.Interests {
			if want[feature.NormalizeTag(tag)] {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered, nil
}

// BulkGet 批量查询画像
func (s *GormProfileStore) BulkGet(ctx context.Context, ids []uint) (map[uint]*models.UserProfile, error) {
	if len(ids) == 0 {
		return map[uint]*models.UserProfile{}, nil
	}
	var rows []*models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, translateDBErr(err, "profiles")
	}
	out := make(map[uint]*models.UserProfile, len(rows))
	for _, p := range rows {
		out[p.UserID] = p
	}
	return out, nil
}

// applyPatch 将非nil字段写入画像，枚举字段先校验
func applyPatch(p *models.UserProfile, patch *models.ProfilePatch) error {
	if patch == nil {
		return nil
	}
	if patch.AcademicLevel != nil {
		if !patch.AcademicLevel.Valid() {
			return apperr.Newf(apperr.TagConflictingEnum, "unknown academic_level %q", *patch.AcademicLevel)
		}
		p.AcademicLevel = *patch.AcademicLevel
	}
	if patch.LearningStyle != nil {
		if !patch.LearningStyle.Valid() {
			return apperr.Newf(apperr.TagConflictingEnum, "unknown learning_style %q", *patch.LearningStyle)
		}
		p.LearningStyle = *patch.LearningStyle
	}
	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.FieldOfStudy != nil {
		p.FieldOfStudy = *patch.FieldOfStudy
	}
	if patch.Institution != nil {
		p.Institution = *patch.Institution
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.Timezone != nil {
		p.Timezone = *patch.Timezone
	}
	if patch.Languages != nil {
		p.Languages = datatypes.NewJSONSlice(*patch.Languages)
	}
	if patch.Interests != nil {
		p.Interests = datatypes.NewJSONSlice(*patch.Interests)
	}
	if patch.Strengths != nil {
		p.Strengths = datatypes.NewJSONSlice(*patch.Strengths)
	}
	if patch.Weaknesses != nil {
		p.Weaknesses = datatypes.NewJSONSlice(*patch.Weaknesses)
	}
	if patch.Expertise != nil {
		p.Expertise = datatypes.NewJSONType(*patch.Expertise)
	}
	if patch.Goals != nil {
		p.Goals = datatypes.NewJSONSlice(*patch.Goals)
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	if patch.Points != nil {
		p.Points = *patch.Points
	}
	return nil
}

// patchColumns 列出补丁触及的列及其新值，未触及的列不出现
func patchColumns(patch *models.ProfilePatch) map[string]interface{} {
	cols := map[string]interface{}{}
	if patch == nil {
		return cols
	}
	if patch.FullName != nil {
		cols["full_name"] = *patch.FullName
	}
	if patch.FieldOfStudy != nil {
		cols["field_of_study"] = *patch.FieldOfStudy
	}
	if patch.AcademicLevel != nil {
		cols["academic_level"] = *patch.AcademicLevel
	}
	if patch.Institution != nil {
		cols["institution"] = *patch.Institution
	}
	if patch.Bio != nil {
		cols["bio"] = *patch.Bio
	}
	if patch.Timezone != nil {
		cols["timezone"] = *patch.Timezone
	}
	if patch.Languages != nil {
		cols["languages"] = datatypes.NewJSONSlice(*patch.Languages)
	}
	if patch.Interests != nil {
		cols["interests"] = datatypes.NewJSONSlice(*patch.Interests)
	}
	if patch.Strengths != nil {
		cols["strengths"] = datatypes.NewJSONSlice(*patch.Strengths)
	}
	if patch.Weaknesses != nil {
		cols["weaknesses"] = datatypes.NewJSONSlice(*patch.Weaknesses)
	}
	if patch.Expertise != nil {
		cols["expertise"] = datatypes.NewJSONType(*patch.Expertise)
	}
	if patch.Goals != nil {
		cols["goals"] = datatypes.NewJSONSlice(*patch.Goals)
	}
	if patch.IsActive != nil {
		cols["is_active"] = *patch.IsActive
	}
	if patch.Points != nil {
		cols["points"] = *patch.Points
	}
	return cols
}

// validateProfile 校验写入前的文档不变式
func validateProfile(p *models.UserProfile) error {
	if p.Points < 0 {
		return apperr.New(apperr.TagIntegrityViolation, "points must be non-negative")
	}
	p.Level = models.LevelForPoints(p.Points)

	known := make(map[string]bool, len(p.Interests)+len(p.Strengths))
	for _, tag := range p.Interests {
		known[feature.NormalizeTag(tag)] = true
	}
	for _, tag := range p.Strengths {
		known[feature.NormalizeTag(tag)] = true
	}
	for tag := range p.Expertise.Data() {
		if !known[feature.NormalizeTag(tag)] {
			return apperr.Newf(apperr.TagIntegrityViolation,
				"expertise tag %q missing from interests and strengths", tag)
		}
	}
	return nil
}

// translateDBErr 将底层存储错误翻译为领域错误
func translateDBErr(err error, what string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Newf(apperr.TagNotFound, "%s not found", what)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.TagTimeout, what+" read timed out", err)
	case errors.Is(err, context.Canceled):
		return apperr.Wrap(apperr.TagTimeout, what+" read canceled", err)
	default:
		return apperr.Wrap(apperr.TagUpstreamUnavailable, what+" store unavailable", err)
	}
}
