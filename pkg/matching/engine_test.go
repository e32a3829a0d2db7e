package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/apperr"
	"github.com/BinLe1988/study-match/pkg/feature"
	"github.com/BinLe1988/study-match/pkg/logger"
	"github.com/BinLe1988/study-match/pkg/scoring"
	"github.com/BinLe1988/study-match/pkg/store"
)

// memProfiles 内存画像存储
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

func (m *memProfiles) Scan(_ context.Context, f store.ProfileFilter) ([]*models.UserProfile, error) {
	var out []*models.UserProfile
	for _, p := range m.profiles {
		if f.IsActive != nil && p.IsActive != *f.IsActive {
			continue
		}
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

// memMatches 内存匹配存储，无序对唯一
type memMatches struct {
	byID map[string]*models.Match
}

func newMemMatches() *memMatches {
	return &memMatches{byID: map[string]*models.Match{}}
}

func (m *memMatches) activePair(low, high uint) bool {
	for _, rec := range m.byID {
		if rec.PairLow != low || rec.PairHigh != high {
			continue
		}
		if rec.Status == models.MatchAccepted || rec.Status == models.MatchDeclined {
			return true
		}
		if rec.Status == models.MatchSuggested && rec.ExpiresAt.After(time.Now()) {
			return true
		}
	}
	return false
}

func (m *memMatches) Create(_ context.Context, rec *models.Match) error {
	rec.PairLow, rec.PairHigh = models.PairKey(rec.UserID, rec.MatchedUserID)
	if m.activePair(rec.PairLow, rec.PairHigh) {
		return apperr.New(apperr.TagDuplicatePair, "pair exists")
	}
	m.byID[rec.ID] = rec
	return nil
}

func (m *memMatches) Get(_ context.Context, id string) (*models.Match, error) {
	rec, ok := m.byID[id]
	if !ok {
		return nil, apperr.New(apperr.TagNotFound, "match not found")
	}
	return rec, nil
}

func (m *memMatches) Save(_ context.Context, rec *models.Match) error {
	m.byID[rec.ID] = rec
	return nil
}

func (m *memMatches) ActivePartners(_ context.Context, userID uint) (map[uint]bool, error) {
	out := map[uint]bool{}
	for _, rec := range m.byID {
		if !rec.Involves(userID) {
			continue
		}
		if !m.activePair(rec.PairLow, rec.PairHigh) {
			continue
		}
		if rec.UserID == userID {
			out[rec.MatchedUserID] = true
		} else {
			out[rec.UserID] = true
		}
	}
	return out, nil
}

func (m *memMatches) ListForUser(_ context.Context, userID uint, status models.MatchStatus) ([]*models.Match, error) {
	var out []*models.Match
	for _, rec := range m.byID {
		if rec.Involves(userID) && (status == "" || rec.Status == status) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memMatches) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, rec := range m.byID {
		if rec.Status == models.MatchSuggested && !rec.ExpiresAt.After(now) {
			rec.Status = models.MatchExpired
			n++
		}
	}
	return n, nil
}

func student(id uint, interests []string, field string, level models.AcademicLevel) *models.UserProfile {
	return &models.UserProfile{
		UserID:        id,
		FieldOfStudy:  field,
		AcademicLevel: level,
		LearningStyle: models.StyleMultimodal,
		Languages:     datatypes.NewJSONSlice([]string{"en"}),
		Interests:     datatypes.NewJSONSlice(interests),
		IsActive:      true,
	}
}

func newTestEngine(t *testing.T, profiles *memProfiles, matches *memMatches) *Engine {
	t.Helper()
	log, err := logger.New("development")
	assert.NoError(t, err)
	index := NewIndex(profiles, time.Minute)
	scorer := scoring.NewScorer(scoring.DefaultWeights())
	return NewEngine(profiles, matches, index, scorer, DefaultOptions(), log)
}

func TestSuggestMatchesRankingAndPersist(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: student(1, []string{"ml", "python", "stats"}, "Computer Science", models.LevelBachelor),
		2: student(2, []string{"ml", "python"}, "Computer Science", models.LevelBachelor),
		3: student(3, []string{"ml"}, "Computer Science", models.LevelBachelor),
		4: student(4, []string{"baking"}, "History", models.LevelHighSchool), // 不入候选集
	}}
	matches := newMemMatches()
	engine := newTestEngine(t, profiles, matches)

	got, err := engine.SuggestMatches(context.Background(), 1, 0)
	assert.NoError(t, err)
	assert.Len(t, got, 2)

	// 兴趣重合更高者排前
	assert.Equal(t, uint(2), got[0].CandidateID)
	assert.Equal(t, uint(3), got[1].CandidateID)
	assert.Greater(t, got[0].Score, got[1].Score)
	assert.Contains(t, got[0].Topics, "ml")

	// 建议已按suggested落库
	assert.Len(t, matches.byID, 2)
	for _, m := range matches.byID {
		assert.Equal(t, models.MatchSuggested, m.Status)
		assert.Equal(t, uint(1), m.UserID)
	}
}

func TestSuggestMatchesUnknownRequester(t *testing.T) {
	engine := newTestEngine(t, &memProfiles{profiles: map[uint]*models.UserProfile{}}, newMemMatches())

	_, err := engine.SuggestMatches(context.Background(), 42, 5)
	assert.True(t, apperr.Has(err, apperr.TagValidationFailed))
}

func TestSuggestMatchesBrandNewUser(t *testing.T) {
	// 全新用户没有兴趣和学科，得到空列表而不是错误
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: student(1, nil, "", ""),
		2: student(2, []string{"ml"}, "Computer Science", models.LevelBachelor),
	}}
	engine := newTestEngine(t, profiles, newMemMatches())

	got, err := engine.SuggestMatches(context.Background(), 1, 5)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestMatchesDeduplicatesActivePairs(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: student(1, []string{"ml"}, "Computer Science", models.LevelBachelor),
		2: student(2, []string{"ml"}, "Computer Science", models.LevelBachelor),
	}}
	matches := newMemMatches()
	engine := newTestEngine(t, profiles, matches)

	first, err := engine.SuggestMatches(context.Background(), 1, 5)
	assert.NoError(t, err)
	assert.Len(t, first, 1)

	// 已有未过期匹配的对子不再出现
	second, err := engine.SuggestMatches(context.Background(), 1, 5)
	assert.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, matches.byID, 1)
}

func TestSuggestMatchesMinScoreFilter(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: student(1, []string{"painting"}, "Arts", models.LevelHighSchool),
		2: student(2, []string{"sculpture"}, "Arts", models.LevelPhD),
	}}
	p2 := profiles.profiles[2]
	p2.Languages = datatypes.NewJSONSlice([]string{"fr"})
	engine := newTestEngine(t, profiles, newMemMatches())

	// 同学科进入候选集，但兴趣不沾边、层次悬殊、语言不通，总分压不过阈值
	got, err := engine.SuggestMatches(context.Background(), 1, 5)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestMatchesDeterministicOrder(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: student(1, []string{"ml"}, "Computer Science", models.LevelBachelor),
		2: student(2, []string{"ml"}, "Computer Science", models.LevelBachelor),
		3: student(3, []string{"ml"}, "Computer Science", models.LevelBachelor),
	}}

	// 同分候选以用户ID升序打破并列；相同快照下两次结果一致
	run := func() []uint {
		engine := newTestEngine(t, profiles, newMemMatches())
		got, err := engine.SuggestMatches(context.Background(), 1, 5)
		assert.NoError(t, err)
		ids := make([]uint, len(got))
		for i, s := range got {
			ids[i] = s.CandidateID
		}
		return ids
	}
	assert.Equal(t, []uint{2, 3}, run())
	assert.Equal(t, run(), run())
}

func TestRecordResponseLifecycle(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: student(1, []string{"ml"}, "Computer Science", models.LevelBachelor),
		2: student(2, []string{"ml"}, "Computer Science", models.LevelBachelor),
	}}
	matches := newMemMatches()
	engine := newTestEngine(t, profiles, matches)

	_, err := engine.SuggestMatches(context.Background(), 1, 5)
	assert.NoError(t, err)
	var matchID string
	for id := range matches.byID {
		matchID = id
	}

	// 非参与者不得答复
	_, err = engine.RecordResponse(context.Background(), matchID, 99, models.DecisionAccept)
	assert.True(t, apperr.Has(err, apperr.TagNotAuthorized))

	// 接受
	m, err := engine.RecordResponse(context.Background(), matchID, 2, models.DecisionAccept)
	assert.NoError(t, err)
	assert.Equal(t, models.MatchAccepted, m.Status)
	assert.NotNil(t, m.RespondedAt)

	// 相同答复幂等
	m, err = engine.RecordResponse(context.Background(), matchID, 2, models.DecisionAccept)
	assert.NoError(t, err)
	assert.Equal(t, models.MatchAccepted, m.Status)

	// 相反答复冲突
	_, err = engine.RecordResponse(context.Background(), matchID, 2, models.DecisionDecline)
	assert.True(t, apperr.Has(err, apperr.TagIntegrityViolation))
}

func TestExpireDue(t *testing.T) {
	profiles := &memProfiles{profiles: map[uint]*models.UserProfile{
		1: student(1, []string{"ml"}, "Computer Science", models.LevelBachelor),
		2: student(2, []string{"ml"}, "Computer Science", models.LevelBachelor),
	}}
	matches := newMemMatches()
	engine := newTestEngine(t, profiles, matches)

	_, err := engine.SuggestMatches(context.Background(), 1, 5)
	assert.NoError(t, err)

	// TTL之前扫不到，TTL之后记录被置为过期
	count, err := engine.ExpireDue(context.Background(), time.Now())
	assert.NoError(t, err)
	assert.Zero(t, count)

	count, err = engine.ExpireDue(context.Background(), time.Now().Add(31*24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
	for _, m := range matches.byID {
		assert.Equal(t, models.MatchExpired, m.Status)
	}
}

func TestProjectionHelper(t *testing.T) {
	// student辅助函数产出的画像投影应保持确定性
	p := student(5, []string{"ML"}, "CS", models.LevelMaster)
	assert.Equal(t, feature.Project(p), feature.Project(p))
}
