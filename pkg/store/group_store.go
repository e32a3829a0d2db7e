package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/apperr"
)

// GroupStore 学习小组存储契约
// 成员变更在写入时校验容量与成员活跃性
type GroupStore interface {
	Create(ctx context.Context, g *models.StudyGroup) error
	Get(ctx context.Context, id string) (*models.StudyGroup, error)
	AddMember(ctx context.Context, groupID string, userID uint) (*models.StudyGroup, error)
	RemoveMember(ctx context.Context, groupID string, userID uint) (*models.StudyGroup, error)
}

// GormGroupStore 基于gorm的小组存储
type GormGroupStore struct {
	db *gorm.DB
}

// NewGormGroupStore 创建小组存储
func NewGormGroupStore(db *gorm.DB) *GormGroupStore {
	return &GormGroupStore{db: db}
}

// Create 写入新小组，校验容量边界与创建者成员资格
func (s *GormGroupStore) Create(ctx context.Context, g *models.StudyGroup) error {
	if g.MaxMembers < models.GroupMinCapacity || g.MaxMembers > models.GroupMaxCapacity {
		return apperr.Newf(apperr.TagValidationFailed, "max_members must be in [%d,%d]",
			models.GroupMinCapacity, models.GroupMaxCapacity)
	}
	if !g.HasMember(g.CreatorID) {
		g.MemberIDs = append([]uint{g.CreatorID}, g.MemberIDs...)
	}
	if len(g.MemberIDs) > g.MaxMembers {
		return apperr.New(apperr.TagCapacityExceeded, "initial members exceed max_members")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range g.MemberIDs {
			if err := requireActiveUser(tx, id); err != nil {
				return err
			}
		}
		if err := tx.Create(g).Error; err != nil {
			return translateDBErr(err, "group")
		}
		return nil
	})
}

// Get 按标识查询小组
func (s *GormGroupStore) Get(ctx context.Context, id string) (*models.StudyGroup, error) {
	var g models.StudyGroup
	if err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, translateDBErr(err, "group")
	}
	return &g, nil
}

// AddMember 添加成员，容量或活跃性不满足时拒绝
func (s *GormGroupStore) AddMember(ctx context.Context, groupID string, userID uint) (*models.StudyGroup, error) {
	var out *models.StudyGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.StudyGroup
		if err := tx.First(&g, "id = ?", groupID).Error; err != nil {
			return translateDBErr(err, "group")
		}
		if !g.IsActive {
			return apperr.New(apperr.TagValidationFailed, "group is retired")
		}
		if g.HasMember(userID) {
			return apperr.New(apperr.TagIntegrityViolation, "already a member")
		}
		if len(g.MemberIDs) >= g.MaxMembers {
			return apperr.New(apperr.TagCapacityExceeded, "group is full")
		}
		if err := requireActiveUser(tx, userID); err != nil {
			return err
		}
		g.MemberIDs = append(g.MemberIDs, userID)
		if err := tx.Save(&g).Error; err != nil {
			return translateDBErr(err, "group")
		}
		out = &g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveMember 移除成员，创建者不可退出自己的小组
func (s *GormGroupStore) RemoveMember(ctx context.Context, groupID string, userID uint) (*models.StudyGroup, error) {
	var out *models.StudyGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.StudyGroup
		if err := tx.First(&g, "id = ?", groupID).Error; err != nil {
			return translateDBErr(err, "group")
		}
		if userID == g.CreatorID {
			return apperr.New(apperr.TagIntegrityViolation, "creator cannot leave own group")
		}
		if !g.HasMember(userID) {
			return apperr.New(apperr.TagNotFound, "not a member")
		}
		members := make([]uint, 0, len(g.MemberIDs)-1)
		for _, id := range g.MemberIDs {
			if id != userID {
				members = append(members, id)
			}
		}
		g.MemberIDs = members
		if err := tx.Save(&g).Error; err != nil {
			return translateDBErr(err, "group")
		}
		out = &g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// requireActiveUser 成员必须拥有活跃画像
func requireActiveUser(tx *gorm.DB, userID uint) error {
	var p models.UserProfile
	err := tx.Select("is_active").Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Newf(apperr.TagValidationFailed, "user %d has no profile", userID)
	}
	if err != nil {
		return translateDBErr(err, "profile")
	}
	if !p.IsActive {
		return apperr.Newf(apperr.TagValidationFailed, "user %d is inactive", userID)
	}
	return nil
}
