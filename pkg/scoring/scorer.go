package scoring

import (
	"math"
	"sort"

	"github.com/BinLe1988/study-match/models"
	"github.com/BinLe1988/study-match/pkg/feature"
)

// 子分数名，同时作为解释分解的键
const (
	SubInterestOverlap = "interest_overlap"
	SubComplement      = "complement"
	SubFieldAffinity   = "field_affinity"
	SubLevelProximity  = "level_proximity"
	SubStyleLangFit    = "style_lang_fit"
)

// Weights 各子分数权重
type Weights struct {
	Interest   float64 `mapstructure:"interest"`
	Complement float64 `mapstructure:"complement"`
	Field      float64 `mapstructure:"field"`
	Level      float64 `mapstructure:"level"`
	StyleLang  float64 `mapstructure:"style_lang"`
}

// DefaultWeights 缺省权重配置
func DefaultWeights() Weights {
	return Weights{
		Interest:   0.35,
		Complement: 0.25,
		Field:      0.15,
		Level:      0.10,
		StyleLang:  0.15,
	}
}

// Result 一次兼容度计算的完整结果
// Score 保留全精度用于排序，对外输出时用 Round4
type Result struct {
	Score       float64
	Type        models.MatchType
	Topics      []string
	Explanation models.Explanation

	// 排序用的子项，避免重算
	InterestOverlap float64
	Complement      float64
	LevelDiff       int
}

// Scorer 兼容度计算器，纯函数、无内部状态
type Scorer struct {
	weights Weights
}

// NewScorer 创建计算器实例
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score 计算两个投影之间的兼容度
// 同一用户恒为0分、空解释；任何一侧缺失的子项计0，不产生NaN
func (s *Scorer) Score(a, b *feature.Projection) Result {
	if a.UserID == b.UserID {
		return Result{Type: models.MatchPeer, Explanation: models.Explanation{}}
	}

	interest := jaccard(a.Interests, b.Interests)
	complement := s.calculateComplement(a, b)
	field := s.calculateFieldAffinity(a.Field, b.Field)
	level := s.calculateLevelProximity(a.LevelRank, b.LevelRank)
	styleLang := s.calculateStyleLangFit(a, b)

	explanation := models.Explanation{
		SubInterestOverlap: subScore(interest, s.weights.Interest),
		SubComplement:      subScore(complement, s.weights.Complement),
		SubFieldAffinity:   subScore(field, s.weights.Field),
		SubLevelProximity:  subScore(level, s.weights.Level),
		SubStyleLangFit:    subScore(styleLang, s.weights.StyleLang),
	}

	total := interest*s.weights.Interest +
		complement*s.weights.Complement +
		field*s.weights.Field +
		level*s.weights.Level +
		styleLang*s.weights.StyleLang

	levelDiff := a.LevelRank - b.LevelRank
	if levelDiff < 0 {
		levelDiff = -levelDiff
	}

	return Result{
		Score:           clamp01(total),
		Type:            deriveMatchType(interest, complement, levelDiff),
		Topics:          sharedTopics(a.Interests, b.Interests),
		Explanation:     explanation,
		InterestOverlap: interest,
		Complement:      complement,
		LevelDiff:       levelDiff,
	}
}

// calculateComplement 互补度：一方强项覆盖另一方弱项的比例，双向取平均
func (s *Scorer) calculateComplement(a, b *feature.Projection) float64 {
	coverAB := float64(intersectionSize(a.Strengths, b.Weaknesses)) / math.Max(1, float64(len(b.Weaknesses)))
	coverBA := float64(intersectionSize(b.Strengths, a.Weaknesses)) / math.Max(1, float64(len(a.Weaknesses)))
	return (coverAB + coverBA) / 2
}

// calculateFieldAffinity 学科亲和度：同学科1.0，同大类0.6，其余0.2
func (s *Scorer) calculateFieldAffinity(fieldA, fieldB string) float64 {
	if fieldA == "" || fieldB == "" {
		return 0
	}
	if fieldA == fieldB {
		return 1.0
	}
	if feature.SameCluster(fieldA, fieldB) {
		return 0.6
	}
	return 0.2
}

// calculateLevelProximity 学历接近度，任一侧未知时为0
func (s *Scorer) calculateLevelProximity(rankA, rankB int) float64 {
	if rankA == 0 || rankB == 0 {
		return 0
	}
	diff := math.Abs(float64(rankA - rankB))
	return clamp01(1 - diff/5)
}

// calculateStyleLangFit 学习风格与语言的匹配度，各占一半
func (s *Scorer) calculateStyleLangFit(a, b *feature.Projection) float64 {
	styleFit := 0.0
	if a.Style == models.StyleMultimodal || b.Style == models.StyleMultimodal {
		styleFit = 1.0
	} else if a.Style != feature.StyleUnknown && a.Style == b.Style {
		styleFit = 1.0
	}
	return 0.5*styleFit + 0.5*jaccard(a.Languages, b.Languages)
}

// deriveMatchType 由子分数推导匹配类型
func deriveMatchType(interest, complement float64, levelDiff int) models.MatchType {
	if levelDiff >= 2 && interest >= 0.3 {
		return models.MatchMentorMentee
	}
	if complement >= 0.5 {
		return models.MatchComplement
	}
	return models.MatchPeer
}

// sharedTopics 共同兴趣标签，字典序保证输出稳定
func sharedTopics(a, b map[string]bool) []string {
	var topics []string
	for tag := range a {
		if b[tag] {
			topics = append(topics, tag)
		}
	}
	sort.Strings(topics)
	return topics
}

// jaccard 集合的Jaccard相似度，任一侧为空时返回0
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := intersectionSize(a, b)
	union := len(a) + len(b) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

func intersectionSize(a, b map[string]bool) int {
	n := 0
	for k := range a {
		if b[k] {
			n++
		}
	}
	return n
}

func subScore(value, weight float64) models.SubScore {
	return models.SubScore{Value: value, Weight: weight, Contribution: value * weight}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Round4 输出用的4位小数舍入，排序始终使用全精度
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
