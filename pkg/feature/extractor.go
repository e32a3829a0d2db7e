package feature

import (
	"strings"

	"github.com/BinLe1988/study-match/models"
)

// StyleUnknown 学习风格缺省值
const StyleUnknown models.LearningStyle = "unknown"

// 专业度取值边界
const (
	ExpertiseMin = 1
	ExpertiseMax = 5
)

// 标签归一化时剔除的无信息词
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "to": true, "for": true,
	"with": true, "intro": true, "basics": true,
}

// Projection 用户画像的确定性投影，评分只依赖此结构
type Projection struct {
	UserID     uint
	Interests  map[string]bool
	Strengths  map[string]bool
	Weaknesses map[string]bool
	LevelRank  int
	Field      string
	Style      models.LearningStyle
	Languages  map[string]bool
	Expertise  map[string]int
}

// 学历层次 → 等级序数
var levelRanks = map[models.AcademicLevel]int{
	models.LevelHighSchool: 1,
	models.LevelAssociate:  2,
	models.LevelBachelor:   3,
	models.LevelMaster:     4,
	models.LevelPhD:        5,
	models.LevelSelfTaught: 2,
	models.LevelOther:      0,
}

// LevelRank 学历层次的序数，未知为0
func LevelRank(level models.AcademicLevel) int {
	return levelRanks[level]
}

// NormalizeTag 归一化单个标签：小写、去首尾空白、压缩内部空白
// 停用词返回空串表示丢弃
func NormalizeTag(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	t = strings.Join(strings.Fields(t), " ")
	if t == "" || stopwords[t] {
		return ""
	}
	return t
}

// NormalizeTagSet 归一化并去重一组标签
func NormalizeTagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if t := NormalizeTag(tag); t != "" {
			set[t] = true
		}
	}
	return set
}

// Project 将用户画像投影为特征结构
// 纯函数：相同输入恒产生相同输出，未知字段取缺省值而不报错
func Project(p *models.UserProfile) *Projection {
	proj := &Projection{
		UserID:     p.UserID,
		Interests:  NormalizeTagSet(p.Interests),
		Strengths:  NormalizeTagSet(p.Strengths),
		Weaknesses: NormalizeTagSet(p.Weaknesses),
		LevelRank:  LevelRank(p.AcademicLevel),
		Field:      CanonicalField(p.FieldOfStudy),
		Style:      StyleUnknown,
		Languages:  make(map[string]bool, len(p.Languages)),
		Expertise:  make(map[string]int),
	}

	if p.LearningStyle.Valid() {
		proj.Style = p.LearningStyle
	}

	for _, lang := range p.Languages {
		l := strings.ToLower(strings.TrimSpace(lang))
		if l != "" {
			proj.Languages[l] = true
		}
	}

	for tag, level := range p.Expertise.Data() {
		t := NormalizeTag(tag)
		if t == "" {
			continue
		}
		if level < ExpertiseMin {
			level = ExpertiseMin
		}
		if level > ExpertiseMax {
			level = ExpertiseMax
		}
		proj.Expertise[t] = level
	}

	return proj
}
