package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/apperr"
)

// MatchStore 匹配记录存储契约
type MatchStore interface {
	// Create 写入新匹配，无序对已有未过期记录时返回 DuplicatePair
	Create(ctx context.Context, m *models.Match) error
	// Get 按标识查询
	Get(ctx context.Context, id string) (*models.Match, error)
	// Save 整条覆盖写回
	Save(ctx context.Context, m *models.Match) error
	// ActivePartners 返回与该用户存在未过期匹配的对方用户集合
	ActivePartners(ctx context.Context, userID uint) (map[uint]bool, error)
	// ListForUser 查询用户参与的匹配，status为空时不过滤
	ListForUser(ctx context.Context, userID uint, status models.MatchStatus) ([]*models.Match, error)
	// ExpireDue 将到期的suggested记录置为expired，返回条数
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// GormMatchStore 基于gorm的匹配存储
type GormMatchStore struct {
	db *gorm.DB
}

// NewGormMatchStore 创建匹配存储
func NewGormMatchStore(db *gorm.DB) *GormMatchStore {
	return &GormMatchStore{db: db}
}

// activePairScope 未过期匹配：已答复的，或建议中且未到期的
func activePairScope(q *gorm.DB, now time.Time) *gorm.DB {
	return q.Where(
		"status IN ? OR (status = ? AND expires_at > ?)",
		[]models.MatchStatus{models.MatchAccepted, models.MatchDeclined},
		models.MatchSuggested, now,
	)
}

// Create 写入新匹配，事务内校验无序对唯一
func (s *GormMatchStore) Create(ctx context.Context, m *models.Match) error {
	m.PairLow, m.PairHigh = models.PairKey(m.UserID, m.MatchedUserID)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		q := tx.Model(&models.Match{}).
			Where("pair_low = ? AND pair_high = ?", m.PairLow, m.PairHigh)
		if err := activePairScope(q, time.Now()).Count(&count).Error; err != nil {
			return translateDBErr(err, "matches")
		}
		if count > 0 {
			return apperr.Newf(apperr.TagDuplicatePair, "active match exists for pair (%d,%d)", m.PairLow, m.PairHigh)
		}
		if err := tx.Create(m).Error; err != nil {
			return translateDBErr(err, "match")
		}
		return nil
	})
}

// Get 按标识查询匹配
func (s *GormMatchStore) Get(ctx context.Context, id string) (*models.Match, error) {
	var m models.Match
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateDBErr(err, "match")
	}
	return &m, nil
}

// Save 整条覆盖写回
func (s *GormMatchStore) Save(ctx context.Context, m *models.Match) error {
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return translateDBErr(err, "match")
	}
	return nil
}

// ActivePartners 返回与该用户存在未过期匹配的对方用户集合
func (s *GormMatchStore) ActivePartners(ctx context.Context, userID uint) (map[uint]bool, error) {
	var rows []models.Match
	q := s.db.WithContext(ctx).
		Where("user_id = ? OR matched_user_id = ?", userID, userID)
	if err := activePairScope(q, time.Now()).Find(&rows).Error; err != nil {
		return nil, translateDBErr(err, "matches")
	}
	partners := make(map[uint]bool, len(rows))
	for _, m := range rows {
		if m.UserID == userID {
			partners[m.MatchedUserID] = true
		} else {
			partners[m.UserID] = true
		}
	}
	return partners, nil
}

// ListForUser 查询用户参与的匹配
func (s *GormMatchStore) ListForUser(ctx context.Context, userID uint, status models.MatchStatus) ([]*models.Match, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ? OR matched_user_id = ?", userID, userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []*models.Match
	if err := q.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, translateDBErr(err, "matches")
	}
	return rows, nil
}

// ExpireDue 将到期的suggested记录置为expired
func (s *GormMatchStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("status = ? AND expires_at <= ?", models.MatchSuggested, now).
		Update("status", models.MatchExpired)
	if res.Error != nil {
		return 0, translateDBErr(res.Error, "matches")
	}
	return res.RowsAffected, nil
}
