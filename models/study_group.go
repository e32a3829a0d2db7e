package models

import (
	"time"

	"gorm.io/datatypes"
)

// Difficulty 小组难度
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid 判断难度是否在枚举内
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// 小组容量边界
const (
	GroupMinCapacity = 2
	GroupMaxCapacity = 50
)

// StudyGroup 学习小组
// 不变式：成员数不超过 MaxMembers，创建者始终在成员内
type StudyGroup struct {
	ID              string                    `gorm:"primaryKey;size:36" json:"id"`
	Name            string                    `gorm:"size:100;not null" json:"name"`
	Topic           string                    `gorm:"size:100;index" json:"topic"`
	Subject         string                    `gorm:"size:100" json:"subject"`
	DifficultyLevel Difficulty                `gorm:"size:20" json:"difficulty_level"`
	CreatorID       uint                      `gorm:"index;not null" json:"creator_id"`
	MemberIDs       datatypes.JSONSlice[uint] `json:"member_ids"`
	MaxMembers      int                       `json:"max_members"`
	IsActive        bool                      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// HasMember 判断用户是否已是成员
func (g *StudyGroup) HasMember(userID uint) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupCreateRequest 创建小组请求
type GroupCreateRequest struct {
	Name            string     `json:"name" binding:"required,min=2,max=100"`
	Topic           string     `json:"topic" binding:"required"`
	Subject         string     `json:"subject"`
	DifficultyLevel Difficulty `json:"difficulty_level"`
	MaxMembers      int        `json:"max_members"`
	InitialMembers  []uint     `json:"initial_members"`
}

// GroupJoinRequest 加入小组请求
type GroupJoinRequest struct {
	UserID       uint   `json:"user_id"`
	Introduction string `json:"introduction"`
}

// GroupPlanRequest 小组编排请求
type GroupPlanRequest struct {
	Topic      string     `json:"topic" binding:"required"`
	Pool       []uint     `json:"pool" binding:"required,min=1"`
	TargetSize int        `json:"target_size"`
	MaxGroups  int        `json:"max_groups"`
	Difficulty Difficulty `json:"difficulty"`
}
