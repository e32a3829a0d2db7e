package feature

import "strings"

// 学科大类，同类学科之间有基础亲和度
const (
	ClusterSTEM       = "stem"
	ClusterHumanities = "humanities"
	ClusterLifeSci    = "life_sciences"
	ClusterBusiness   = "business_law"
	ClusterSocial     = "social_sciences"
)

// 规范学科名 → 大类
var fieldClusters = map[string]string{
	"computer science":  ClusterSTEM,
	"mathematics":       ClusterSTEM,
	"engineering":       ClusterSTEM,
	"physics":           ClusterSTEM,
	"humanities":        ClusterHumanities,
	"arts":              ClusterHumanities,
	"literature":        ClusterHumanities,
	"history":           ClusterHumanities,
	"philosophy":        ClusterHumanities,
	"biology":           ClusterLifeSci,
	"chemistry":         ClusterLifeSci,
	"medicine":          ClusterLifeSci,
	"business":          ClusterBusiness,
	"economics":         ClusterBusiness,
	"law":               ClusterBusiness,
	"psychology":        ClusterSocial,
	"political science": ClusterSocial,
	"social sciences":   ClusterSocial,
}

// 常见别名 → 规范学科名
var fieldAliases = map[string]string{
	"cs":               "computer science",
	"comp sci":         "computer science",
	"informatics":      "computer science",
	"software":         "computer science",
	"math":             "mathematics",
	"maths":            "mathematics",
	"stats":            "mathematics",
	"statistics":       "mathematics",
	"art":              "arts",
	"fine arts":        "arts",
	"bio":              "biology",
	"med":              "medicine",
	"pre-med":          "medicine",
	"econ":             "economics",
	"poli sci":         "political science",
	"politics":         "political science",
	"sociology":        "social sciences",
	"psych":            "psychology",
}

// CanonicalField 归一化学科名
// 未知取值按小写去空格后原样保留，不报错
func CanonicalField(field string) string {
	f := strings.ToLower(strings.TrimSpace(field))
	if canonical, ok := fieldAliases[f]; ok {
		return canonical
	}
	return f
}

// FieldCluster 返回规范学科名所属大类，未知学科返回空串
func FieldCluster(field string) string {
	return fieldClusters[CanonicalField(field)]
}

// SameCluster 判断两个学科是否属于同一已知大类
func SameCluster(a, b string) bool {
	ca := FieldCluster(a)
	return ca != "" && ca == FieldCluster(b)
}
