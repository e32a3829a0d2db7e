package matching

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/apperr"
	"github.com/BinLe1988/study-match/pkg/feature"
	"github.com/BinLe1988/study-match/pkg/logger"
	"github.com/BinLe1988/study-match/pkg/scoring"
	"github.com/BinLe1988/study-match/pkg/store"
)

// Options 引擎运行参数
type Options struct {
	MinScore       float64
	MatchTTL       time.Duration
	DefaultLimit   int
	ProfileTimeout time.Duration
	BulkTimeout    time.Duration
}

// DefaultOptions 缺省运行参数
func DefaultOptions() Options {
	return Options{
		MinScore:       0.25,
		MatchTTL:       30 * 24 * time.Hour,
		DefaultLimit:   20,
		ProfileTimeout: 2 * time.Second,
		BulkTimeout:    5 * time.Second,
	}
}

// Suggestion 一条匹配建议
type Suggestion struct {
	CandidateID uint               `json:"candidate_id"`
	Score       float64            `json:"score"`
	MatchType   models.MatchType   `json:"match_type"`
	Topics      []string           `json:"topics"`
	Explanation models.Explanation `json:"explanation"`
}

// Engine 匹配引擎
// 所有依赖显式注入，评分本身无隐藏状态
type Engine struct {
	profiles store.ProfileStore
	matches  store.MatchStore
	index    *Index
	scorer   *scoring.Scorer
	opts     Options
	log      *logger.Logger
	now      func() time.Time
}

// NewEngine 创建匹配引擎
func NewEngine(profiles store.ProfileStore, matches store.MatchStore, index *Index,
	scorer *scoring.Scorer, opts Options, log *logger.Logger) *Engine {
	return &Engine{
		profiles: profiles,
		matches:  matches,
		index:    index,
		scorer:   scorer,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// ranked 排序中间态，排序用全精度
type ranked struct {
	candidateID uint
	result      scoring.Result
}

// SuggestMatches 为请求者生成排序后的匹配建议并持久化为suggested
// 全新用户得到空列表；未知用户报 ValidationFailed
func (e *Engine) SuggestMatches(ctx context.Context, userID uint, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = e.opts.DefaultLimit
	}

	readCtx, cancel := context.WithTimeout(ctx, e.opts.ProfileTimeout)
	requesterProfile, err := e.profiles.Get(readCtx, userID)
	cancel()
	if err != nil {
		if apperr.Has(err, apperr.TagNotFound) {
			return nil, apperr.Newf(apperr.TagValidationFailed, "requester %d unknown", userID)
		}
		return nil, err
	}
	requester := feature.Project(requesterProfile)

	candidateIDs, err := e.index.Candidates(ctx, requester)
	if err != nil {
		return nil, err
	}
	if len(candidateIDs) == 0 {
		return []Suggestion{}, nil
	}

	bulkCtx, cancel := context.WithTimeout(ctx, e.opts.BulkTimeout)
	candidates, err := e.profiles.BulkGet(bulkCtx, candidateIDs)
	cancel()
	if err != nil {
		return nil, err
	}

	partners, err := e.matches.ActivePartners(ctx, userID)
	if err != nil {
		return nil, err
	}

	var scored []ranked
	for _, id := range candidateIDs {
		p, ok := candidates[id]
		if !ok || !p.IsActive || partners[id] {
			continue
		}
		result := e.scorer.Score(requester, feature.Project(p))
		if result.Score < e.opts.MinScore {
			continue
		}
		scored = append(scored, ranked{candidateID: id, result: result})
	}

	sortRanked(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}

	suggestions := make([]Suggestion, 0, len(scored))
	for _, r := range scored {
		suggestions = append(suggestions, Suggestion{
			CandidateID: r.candidateID,
			Score:       scoring.Round4(r.result.Score),
			MatchType:   r.result.Type,
			Topics:      r.result.Topics,
			Explanation: roundExplanation(r.result.Explanation),
		})
		e.persistSuggestion(ctx, userID, r)
	}
	return suggestions, nil
}

// persistSuggestion 落库单条建议
// 并发写同一无序对时以持久层唯一性为准，DuplicatePair不阻断返回
func (e *Engine) persistSuggestion(ctx context.Context, userID uint, r ranked) {
	now := e.now()
	m := &models.Match{
		ID:            uuid.NewString(),
		UserID:        userID,
		MatchedUserID: r.candidateID,
		Score:         scoring.Round4(r.result.Score),
		Topics:        datatypes.NewJSONSlice(r.result.Topics),
		MatchType:     r.result.Type,
		Status:        models.MatchSuggested,
		Explanation:   datatypes.NewJSONType(r.result.Explanation),
		CreatedAt:     now,
		ExpiresAt:     now.Add(e.opts.MatchTTL),
	}
	if err := e.matches.Create(ctx, m); err != nil {
		if apperr.Has(err, apperr.TagDuplicatePair) {
			e.log.Debug("suggestion already persisted", "user", userID, "candidate", r.candidateID)
			return
		}
		e.log.Warn("failed to persist suggestion", "user", userID, "candidate", r.candidateID, "err", err)
	}
}

// RecordResponse 记录参与者对匹配的答复
// 相同(匹配,用户,决定)重复调用是幂等的
func (e *Engine) RecordResponse(ctx context.Context, matchID string, userID uint, decision models.MatchDecision) (*models.Match, error) {
	if !decision.Valid() {
		return nil, apperr.Newf(apperr.TagValidationFailed, "unknown decision %q", decision)
	}

	m, err := e.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Involves(userID) {
		return nil, apperr.New(apperr.TagNotAuthorized, "only match participants may respond")
	}

	target := models.MatchAccepted
	if decision == models.DecisionDecline {
		target = models.MatchDeclined
	}

	switch m.Status {
	case models.MatchSuggested:
		now := e.now()
		m.Status = target
		m.RespondedAt = &now
		if err := e.matches.Save(ctx, m); err != nil {
			return nil, err
		}
		return m, nil
	case target:
		// 重复答复，维持终态
		return m, nil
	case models.MatchExpired:
		return nil, apperr.New(apperr.TagIntegrityViolation, "match expired")
	default:
		return nil, apperr.New(apperr.TagIntegrityViolation, "already_responded")
	}
}

// ListMatches 查询用户参与的匹配记录
func (e *Engine) ListMatches(ctx context.Context, userID uint, status models.MatchStatus) ([]*models.Match, error) {
	return e.matches.ListForUser(ctx, userID, status)
}

// ExpireDue 将到期的建议置为过期，返回清理条数
func (e *Engine) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	count, err := e.matches.ExpireDue(ctx, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		e.log.Info("expired stale suggestions", "count", count)
	}
	return count, nil
}

// sortRanked 分数降序；并列时依次比兴趣重合、互补度、学历差、候选ID
func sortRanked(scored []ranked) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.result.Score != b.result.Score {
			return a.result.Score > b.result.Score
		}
		if a.result.InterestOverlap != b.result.InterestOverlap {
			return a.result.InterestOverlap > b.result.InterestOverlap
		}
		if a.result.Complement != b.result.Complement {
			return a.result.Complement > b.result.Complement
		}
		if a.result.LevelDiff != b.result.LevelDiff {
			return a.result.LevelDiff < b.result.LevelDiff
		}
		return a.candidateID < b.candidateID
	})
}

// roundExplanation 输出前将分解数值舍入到4位小数
func roundExplanation(exp models.Explanation) models.Explanation {
	out := make(models.Explanation, len(exp))
	for name, s := range exp {
		out[name] = models.SubScore{
			Value:        scoring.Round4(s.Value),
			Weight:       s.Weight,
			Contribution: scoring.Round4(s.Contribution),
		}
	}
	return out
}
