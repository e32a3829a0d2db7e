package matching

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/feature"
	"github.com/BinLe1988/study-match/pkg/store"
)

// generation 索引的一个只读代际
// 重建产出新代际后整体替换指针，读方始终看到一致快照
type generation struct {
	byTag   map[string]map[uint]bool
	byField map[string]map[uint]bool
	byLevel map[models.AcademicLevel]map[uint]bool
	active  map[uint]bool
	builtAt time.Time
}

func newGeneration() *generation {
	return &generation{
		byTag:   make(map[string]map[uint]bool),
		byField: make(map[string]map[uint]bool),
		byLevel: make(map[models.AcademicLevel]map[uint]bool),
		active:  make(map[uint]bool),
		builtAt: time.Now(),
	}
}

// add 将一个画像加入代际
func (g *generation) add(p *models.UserProfile) {
	if !p.IsActive {
		return
	}
	g.active[p.UserID] = true
	for tag := range feature.NormalizeTagSet(p.Interests) {
		if g.byTag[tag] == nil {
			g.byTag[tag] = make(map[uint]bool)
		}
		g.byTag[tag][p.UserID] = true
	}
	if f := feature.CanonicalField(p.FieldOfStudy); f != "" {
		if g.byField[f] == nil {
			g.byField[f] = make(map[uint]bool)
		}
		g.byField[f][p.UserID] = true
	}
	if p.AcademicLevel != "" {
		if g.byLevel[p.AcademicLevel] == nil {
			g.byLevel[p.AcademicLevel] = make(map[uint]bool)
		}
		g.byLevel[p.AcademicLevel][p.UserID] = true
	}
}

// remove 将用户从代际的所有倒排表中摘除
func (g *generation) remove(userID uint) {
	delete(g.active, userID)
	for _, ids := range g.byTag {
		delete(ids, userID)
	}
	for _, ids := range g.byField {
		delete(ids, userID)
	}
	for _, ids := range g.byLevel {
		delete(ids, userID)
	}
}

// clone 深拷贝代际，构建时间随原代际
// 增量更新只改副本，已发布的代际永不被写
func (g *generation) clone() *generation {
	ng := &generation{
		byTag:   make(map[string]map[uint]bool, len(g.byTag)),
		byField: make(map[string]map[uint]bool, len(g.byField)),
		byLevel: make(map[models.AcademicLevel]map[uint]bool, len(g.byLevel)),
		active:  make(map[uint]bool, len(g.active)),
		builtAt: g.builtAt,
	}
	for id := range g.active {
		ng.active[id] = true
	}
	for tag, ids := range g.byTag {
		ng.byTag[tag] = cloneIDSet(ids)
	}
	for f, ids := range g.byField {
		ng.byField[f] = cloneIDSet(ids)
	}
	for lvl, ids := range g.byLevel {
		ng.byLevel[lvl] = cloneIDSet(ids)
	}
	return ng
}

func cloneIDSet(ids map[uint]bool) map[uint]bool {
	out := make(map[uint]bool, len(ids))
	for id := range ids {
		out[id] = true
	}
	return out
}

// Index 候选人倒排索引
// 读多写少：读方取当前代际指针，重建在锁外完成后换入
type Index struct {
	mu       sync.RWMutex
	gen      *generation
	maxStale time.Duration
	profiles store.ProfileStore
}

// NewIndex 创建索引，maxStale 为允许的最大陈旧窗口
func NewIndex(profiles store.ProfileStore, maxStale time.Duration) *Index {
	// 初始代际标记为陈旧，首次读取即触发全量构建
	gen := newGeneration()
	gen.builtAt = time.Time{}
	return &Index{
		gen:      gen,
		maxStale: maxStale,
		profiles: profiles,
	}
}

// current 取当前代际，必要时先重建
func (idx *Index) current(ctx context.Context) (*generation, error) {
	idx.mu.RLock()
	gen := idx.gen
	idx.mu.RUnlock()

	if time.Since(gen.builtAt) <= idx.maxStale {
		return gen, nil
	}
	return idx.Rebuild(ctx)
}

// Rebuild 全量重建索引并替换当前代际
func (idx *Index) Rebuild(ctx context.Context) (*generation, error) {
	active := true
	profiles, err := idx.profiles.Scan(ctx, store.ProfileFilter{IsActive: &active})
	if err != nil {
		return nil, err
	}

	gen := newGeneration()
	for _, p := range profiles {
		gen.add(p)
	}

	idx.mu.Lock()
	idx.gen = gen
	idx.mu.Unlock()
	return gen, nil
}

// NotifyUpsert 画像写入后的增量通知，保持陈旧窗口内的一致性
// 写时复制：在副本上打补丁后整体换入，正在读旧代际的请求不受影响
func (idx *Index) NotifyUpsert(p *models.UserProfile) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	gen := idx.gen.clone()
	gen.remove(p.UserID)
	gen.add(p)
	idx.gen = gen
}

// Candidates 求请求者的候选集：共享兴趣或同学科的活跃用户并集
// 排除请求者本人与非活跃画像，结果升序保证确定性
func (idx *Index) Candidates(ctx context.Context, requester *feature.Projection) ([]uint, error) {
	gen, err := idx.current(ctx)
	if err != nil {
		return nil, err
	}

	found := make(map[uint]bool)
	for tag := range requester.Interests {
		for id := range gen.byTag[tag] {
			found[id] = true
		}
	}
	if requester.Field != "" {
		for id := range gen.byField[requester.Field] {
			found[id] = true
		}
	}
	delete(found, requester.UserID)

	ids := make([]uint, 0, len(found))
	for id := range found {
		if gen.active[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// BuiltAt 当前代际的构建时间，仅用于观测
func (idx *Index) BuiltAt() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.gen.builtAt
}
