package models

import (
	"time"

	"gorm.io/datatypes"
)

// AcademicLevel 学历层次
type AcademicLevel string

const (
	LevelHighSchool AcademicLevel = "high_school"
	LevelAssociate  AcademicLevel = "associate"
	LevelBachelor   AcademicLevel = "bachelor"
	LevelMaster     AcademicLevel = "master"
	LevelPhD        AcademicLevel = "phd"
	LevelSelfTaught AcademicLevel = "self_taught"
	LevelOther      AcademicLevel = "other"
)

// Valid 判断学历层次是否在枚举内
func (l AcademicLevel) Valid() bool {
	switch l {
	case LevelHighSchool, LevelAssociate, LevelBachelor, LevelMaster,
		LevelPhD, LevelSelfTaught, LevelOther:
		return true
	}
	return false
}

// LearningStyle 学习风格
type LearningStyle string

const (
	StyleVisual         LearningStyle = "visual"
	StyleAuditory       LearningStyle = "auditory"
	StyleReadingWriting LearningStyle = "reading_writing"
	StyleKinesthetic    LearningStyle = "kinesthetic"
	StyleMultimodal     LearningStyle = "multimodal"
)

// Valid 判断学习风格是否在枚举内
func (s LearningStyle) Valid() bool {
	switch s {
	case StyleVisual, StyleAuditory, StyleReadingWriting, StyleKinesthetic, StyleMultimodal:
		return true
	}
	return false
}

// PointsPerLevel 每升一级所需积分
const PointsPerLevel = 500

// LevelForPoints 由积分计算等级，恒有 level = points/500 + 1
func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

// UserProfile 用户画像模型，每个用户一条
// 标签集合与映射按JSON列存储，保持文档型的灵活结构
type UserProfile struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	UserID        uint          `gorm:"uniqueIndex;not null" json:"user_id"`
	FullName      string        `gorm:"size:100" json:"full_name"`
	FieldOfStudy  string        `gorm:"size:100;index" json:"field_of_study"`
	AcademicLevel AcademicLevel `gorm:"size:20;index" json:"academic_level"`
	Institution   string        `gorm:"size:200" json:"institution"`
	Bio           string        `gorm:"type:text" json:"bio"`
	Timezone      string        `gorm:"size:50" json:"timezone"`

	// 语言代码，按用户偏好排序
	Languages datatypes.JSONSlice[string] `json:"languages"`

	// 技能集合
	Interests  datatypes.JSONSlice[string]        `json:"interests"`
	Strengths  datatypes.JSONSlice[string]        `json:"strengths"`
	Weaknesses datatypes.JSONSlice[string]        `json:"weaknesses"`
	Expertise  datatypes.JSONType[map[string]int] `json:"expertise_level"`

	// 偏好设置
	LearningStyle LearningStyle               `gorm:"size:20" json:"learning_style"`
	Goals         datatypes.JSONSlice[string] `json:"goals"`

	// 运营字段
	IsActive   bool      `gorm:"default:true;index" json:"is_active"`
	Points     int       `gorm:"default:0" json:"points"`
	Level      int       `gorm:"default:1" json:"level"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// ProfilePatch 画像的字段级更新请求，nil表示不修改
type ProfilePatch struct {
	FullName      *string        `json:"full_name"`
	FieldOfStudy  *string        `json:"field_of_study"`
	AcademicLevel *AcademicLevel `json:"academic_level"`
	Institution   *string        `json:"institution"`
	Bio           *string        `json:"bio"`
	Timezone      *string        `json:"timezone"`
	Languages     *[]string      `json:"languages"`

	Interests  *[]string       `json:"interests"`
	Strengths  *[]string       `json:"strengths"`
	Weaknesses *[]string       `json:"weaknesses"`
	Expertise  *map[string]int `json:"expertise_level"`

	LearningStyle *LearningStyle `json:"learning_style"`
	Goals         *[]string      `json:"goals"`

	IsActive *bool `json:"is_active"`
	Points   *int  `json:"points"`
}
