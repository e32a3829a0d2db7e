package models

import (
	"time"

	"gorm.io/datatypes"
)

// MatchType 匹配类型
type MatchType string

const (
	MatchPeer         MatchType = "peer"
	MatchMentorMentee MatchType = "mentor_mentee"
	MatchComplement   MatchType = "complement"
)

// MatchStatus 匹配状态
type MatchStatus string

const (
	MatchSuggested MatchStatus = "suggested"
	MatchAccepted  MatchStatus = "accepted"
	MatchDeclined  MatchStatus = "declined"
	MatchExpired   MatchStatus = "expired"
)

// MatchDecision 用户对匹配的答复
type MatchDecision string

const (
	DecisionAccept  MatchDecision = "accept"
	DecisionDecline MatchDecision = "decline"
)

// Valid 判断答复是否在枚举内
func (d MatchDecision) Valid() bool {
	return d == DecisionAccept || d == DecisionDecline
}

// SubScore 单项子分数及其对总分的贡献
type SubScore struct {
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Explanation 分数分解，键为子分数名
type Explanation map[string]SubScore

// Match 匹配记录
// 无序对 (PairLow, PairHigh) 在未过期记录中唯一
type Match struct {
	ID            string                          `gorm:"primaryKey;size:36" json:"id"`
	UserID        uint                            `gorm:"index;not null" json:"user_id"`
	MatchedUserID uint                            `gorm:"index;not null" json:"matched_user_id"`
	PairLow       uint                            `gorm:"index:idx_match_pair" json:"-"`
	PairHigh      uint                            `gorm:"index:idx_match_pair" json:"-"`
	Score         float64                         `json:"compatibility_score"`
	Topics        datatypes.JSONSlice[string]     `json:"topics"`
	MatchType     MatchType                       `gorm:"size:20" json:"match_type"`
	Status        MatchStatus                     `gorm:"size:20;index" json:"status"`
	Explanation   datatypes.JSONType[Explanation] `json:"explanation"`
	CreatedAt     time.Time                       `json:"created_at"`
	ExpiresAt     time.Time                       `gorm:"index" json:"expires_at"`
	RespondedAt   *time.Time                      `json:"responded_at"`
}

// PairKey 规范化的无序对键
func PairKey(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// Involves 判断用户是否为匹配的参与方
func (m *Match) Involves(userID uint) bool {
	return m.UserID == userID || m.MatchedUserID == userID
}

// MatchResponse 匹配记录响应，附带对方用户信息
type MatchResponse struct {
	ID        string        `json:"id"`
	PartnerID uint          `json:"partner_id"`
	Partner   *UserResponse `json:"partner,omitempty"`
	Score     float64       `json:"compatibility_score"`
	Topics    []string      `json:"topics"`
	MatchType MatchType     `json:"match_type"`
	Status    MatchStatus   `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
