package grouping

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/apperr"
	"github.com/BinLe1988/study-match/pkg/feature"
	"github.com/BinLe1988/study-match/pkg/logger"
	"github.com/BinLe1988/study-match/pkg/scoring"
	"github.com/BinLe1988/study-match/pkg/store"
)

// 目标小组规模边界
const (
	MinTargetSize = 3
	MaxTargetSize = 12
)

// 多样性门槛：成员达到3人后小组学历方差不得低于此值
const minLevelVariance = 0.2

// 残余小组成立的最小人数
const minResidualSize = 3

// Options 编排器运行参数
type Options struct {
	DefaultSize int
	BulkTimeout time.Duration
}

// Proposal 一个尚未持久化的小组提案
type Proposal struct {
	Members    []uint            `json:"members"`
	Cohesion   float64           `json:"cohesion"`
	Difficulty models.Difficulty `json:"difficulty,omitempty"`
}

// Plan 编排结果：提案列表加未能安置的成员
type Plan struct {
	Groups     []Proposal `json:"groups"`
	Unassigned []uint     `json:"unassigned"`
}

// Planner 小组编排器，复用特征投影与兼容度计算
type Planner struct {
	profiles store.ProfileStore
	scorer   *scoring.Scorer
	opts     Options
	log      *logger.Logger
}

// NewPlanner 创建编排器
func NewPlanner(profiles store.ProfileStore, scorer *scoring.Scorer, opts Options, log *logger.Logger) *Planner {
	return &Planner{profiles: profiles, scorer: scorer, opts: opts, log: log}
}

// pairMatrix 对称的两两兼容度矩阵
type pairMatrix map[uint]map[uint]float64

func (m pairMatrix) at(a, b uint) float64 {
	if a == b {
		return 0
	}
	return m[a][b]
}

// group 编排过程中的可变小组
type group struct {
	members []uint
	ranks   []int
}

// PlanGroups 按主题将候选池划分为若干平衡小组，difficulty 原样标注在每个提案上
// 步骤之间响应取消；部分成员无法安置时返回unassigned而不报错
func (p *Planner) PlanGroups(ctx context.Context, topic string, pool []uint, targetSize, maxGroups int, difficulty models.Difficulty) (*Plan, error) {
	if targetSize == 0 {
		targetSize = p.opts.DefaultSize
	}
	if targetSize < MinTargetSize || targetSize > MaxTargetSize {
		return nil, apperr.Newf(apperr.TagValidationFailed, "target_size must be in [%d,%d]", MinTargetSize, MaxTargetSize)
	}
	if difficulty != "" && !difficulty.Valid() {
		return nil, apperr.Newf(apperr.TagValidationFailed, "unknown difficulty %q", difficulty)
	}

	bulkCtx, cancel := context.WithTimeout(ctx, p.opts.BulkTimeout)
	profiles, err := p.profiles.BulkGet(bulkCtx, pool)
	cancel()
	if err != nil {
		return nil, err
	}

	// 第1步：投影并按主题预筛
	normTopic := feature.NormalizeTag(topic)
	projections := make(map[uint]*feature.Projection)
	var filtered []uint
	for _, id := range pool {
		prof, ok := profiles[id]
		if !ok || !prof.IsActive {
			continue
		}
		proj := feature.Project(prof)
		if !matchesTopic(proj, normTopic) {
			continue
		}
		projections[id] = proj
		filtered = append(filtered, id)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i] < filtered[j] })

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	// 第2步：两两兼容度矩阵
	matrix := make(pairMatrix, len(filtered))
	for _, a := range filtered {
		matrix[a] = make(map[uint]float64, len(filtered)-1)
	}
	for i, a := range filtered {
		for _, b := range filtered[i+1:] {
			score := p.scorer.Score(projections[a], projections[b]).Score
			matrix[a][b] = score
			matrix[b][a] = score
		}
	}

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	numGroups := len(filtered) / targetSize
	if maxGroups > 0 && numGroups > maxGroups {
		numGroups = maxGroups
	}
	if numGroups == 0 {
		// 池子不足一组：能凑够残余下限就成一组，否则全部返还
		if len(filtered) >= minResidualSize {
			return &Plan{
				Groups:     []Proposal{p.propose(filtered, matrix, difficulty)},
				Unassigned: []uint{},
			}, nil
		}
		return &Plan{Groups: []Proposal{}, Unassigned: filtered}, nil
	}

	// 第3步：选种子
	seeds := p.pickSeeds(filtered, projections, matrix, numGroups, targetSize)

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	// 第4步：贪心指派，带多样性防护
	groups := make([]*group, len(seeds))
	seeded := make(map[uint]bool, len(seeds))
	for i, s := range seeds {
		groups[i] = &group{members: []uint{s}, ranks: []int{projections[s].LevelRank}}
		seeded[s] = true
	}

	var deferred []uint
	for _, id := range filtered {
		if seeded[id] {
			continue
		}
		if gi := bestGroup(groups, id, projections[id].LevelRank, matrix, targetSize, true); gi >= 0 {
			groups[gi].add(id, projections[id].LevelRank)
		} else {
			deferred = append(deferred, id)
		}
	}

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	// 第5步：一轮过后放宽防护，再兜底残余小组
	// 残余小组同样受 max_groups 约束，超出配额的成员返还
	var unassigned []uint
	for _, id := range deferred {
		if gi := bestGroup(groups, id, projections[id].LevelRank, matrix, targetSize, false); gi >= 0 {
			groups[gi].add(id, projections[id].LevelRank)
		} else {
			unassigned = append(unassigned, id)
		}
	}
	if len(unassigned) >= minResidualSize && (maxGroups == 0 || len(groups) < maxGroups) {
		residual := &group{}
		for _, id := range unassigned {
			residual.add(id, projections[id].LevelRank)
		}
		groups = append(groups, residual)
		unassigned = nil
	}

	// 第6步：产出提案
	plan := &Plan{Groups: make([]Proposal, 0, len(groups)), Unassigned: unassigned}
	if plan.Unassigned == nil {
		plan.Unassigned = []uint{}
	}
	for _, g := range groups {
		plan.Groups = append(plan.Groups, p.propose(g.members, matrix, difficulty))
	}
	return plan, nil
}

func (g *group) add(id uint, rank int) {
	g.members = append(g.members, id)
	g.ranks = append(g.ranks, rank)
}

// matchesTopic 成员兴趣包含主题，或学科与主题同属一个大类
func matchesTopic(proj *feature.Projection, normTopic string) bool {
	if normTopic == "" {
		return true
	}
	if proj.Interests[normTopic] {
		return true
	}
	return proj.Field != "" &&
		(proj.Field == feature.CanonicalField(normTopic) || feature.SameCluster(normTopic, proj.Field))
}

// pickSeeds 首个种子取top-(k-1)兼容度之和最高者，其余按最远优先
// 避免与已有种子弱项高度重合的候选
func (p *Planner) pickSeeds(filtered []uint, projections map[uint]*feature.Projection,
	matrix pairMatrix, numGroups, targetSize int) []uint {

	best, bestSum := filtered[0], -1.0
	for _, id := range filtered {
		sum := topSum(filtered, id, matrix, targetSize-1)
		if sum > bestSum {
			best, bestSum = id, sum
		}
	}
	seeds := []uint{best}
	taken := map[uint]bool{best: true}

	for len(seeds) < numGroups {
		type candidate struct {
			id       uint
			minDist  float64
			wOverlap float64
		}
		var cands []candidate
		for _, id := range filtered {
			if taken[id] {
				continue
			}
			minDist := math.MaxFloat64
			maxOverlap := 0.0
			for _, s := range seeds {
				if d := 1 - matrix.at(id, s); d < minDist {
					minDist = d
				}
				if o := weaknessOverlap(projections[id], projections[s]); o > maxOverlap {
					maxOverlap = o
				}
			}
			cands = append(cands, candidate{id: id, minDist: minDist, wOverlap: maxOverlap})
		}
		if len(cands) == 0 {
			break
		}
		sort.Slice(cands, func(i, j int) bool {
			a, b := cands[i], cands[j]
			if a.minDist != b.minDist {
				return a.minDist > b.minDist
			}
			if a.wOverlap != b.wOverlap {
				return a.wOverlap < b.wOverlap
			}
			return a.id < b.id
		})
		seeds = append(seeds, cands[0].id)
		taken[cands[0].id] = true
	}
	return seeds
}

// topSum 某成员与其余成员兼容度的前k项之和
func topSum(pool []uint, id uint, matrix pairMatrix, k int) float64 {
	var scores []float64
	for _, other := range pool {
		if other != id {
			scores = append(scores, matrix.at(id, other))
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	if len(scores) > k {
		scores = scores[:k]
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum
}

// weaknessOverlap 两人弱项集合的重合比例
func weaknessOverlap(a, b *feature.Projection) float64 {
	if len(a.Weaknesses) == 0 || len(b.Weaknesses) == 0 {
		return 0
	}
	overlap := 0
	for w := range a.Weaknesses {
		if b.Weaknesses[w] {
			overlap++
		}
	}
	smaller := len(a.Weaknesses)
	if len(b.Weaknesses) < smaller {
		smaller = len(b.Weaknesses)
	}
	return float64(overlap) / float64(smaller)
}

// bestGroup 按均值亲和度选组，容量已满的组跳过
// guarded 时执行多样性防护；无可用组返回-1
func bestGroup(groups []*group, id uint, rank int, matrix pairMatrix, targetSize int, guarded bool) int {
	bestIdx, bestAffinity := -1, -1.0
	for i, g := range groups {
		if len(g.members) >= targetSize {
			continue
		}
		if guarded && len(g.members) >= 3 && rankVariance(append(append([]int{}, g.ranks...), rank)) < minLevelVariance {
			continue
		}
		affinity := 0.0
		for _, m := range g.members {
			affinity += matrix.at(id, m)
		}
		affinity /= float64(len(g.members))
		if affinity > bestAffinity {
			bestIdx, bestAffinity = i, affinity
		}
	}
	return bestIdx
}

// rankVariance 学历序数的总体方差
func rankVariance(ranks []int) float64 {
	if len(ranks) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range ranks {
		mean += float64(r)
	}
	mean /= float64(len(ranks))
	v := 0.0
	for _, r := range ranks {
		d := float64(r) - mean
		v += d * d
	}
	return v / float64(len(ranks))
}

// propose 生成提案，凝聚度为组内两两兼容度均值
func (p *Planner) propose(members []uint, matrix pairMatrix, difficulty models.Difficulty) Proposal {
	sorted := append([]uint{}, members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	sum, pairs := 0.0, 0
	for i, a := range sorted {
		for _, b := range sorted[i+1:] {
			sum += matrix.at(a, b)
			pairs++
		}
	}
	cohesion := 0.0
	if pairs > 0 {
		cohesion = sum / float64(pairs)
	}
	return Proposal{Members: sorted, Cohesion: scoring.Round4(cohesion), Difficulty: difficulty}
}

// checkCancel 编排步骤间的取消检查，不落任何部分状态
func checkCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.TagTimeout, "group planning canceled", err)
	}
	return nil
}
