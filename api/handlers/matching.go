package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BinLe1988/study-match/database"
	"github.com/BinLe1988/study-match/models"
)

// SuggestRequest 匹配建议请求
type SuggestRequest struct {
	UserID uint `json:"user_id"`
	Limit  int  `json:"limit"`
}

// RespondRequest 匹配答复请求
type RespondRequest struct {
	MatchID  string               `json:"match_id" binding:"required"`
	UserID   uint                 `json:"user_id"`
	Decision models.MatchDecision `json:"decision" binding:"required"`
}

// SuggestMatches 为用户生成匹配建议
// 普通用户只能为自己请求，教师和管理员可代查
func (h *Handler) SuggestMatches(c *gin.Context) {
	var req SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requester := req.UserID
	if requester == 0 {
		requester = currentUserID(c)
	}
	if requester != currentUserID(c) && !isStaff(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot request matches for another user"})
		return
	}

	suggestions, err := h.Engine.SuggestMatches(c.Request.Context(), requester, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": suggestions})
}

// RespondMatch 记录对匹配建议的接受或拒绝
func (h *Handler) RespondMatch(c *gin.Context) {
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = currentUserID(c)
	}
	if userID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot respond on behalf of another user"})
		return
	}

	match, err := h.Engine.RecordResponse(c.Request.Context(), req.MatchID, userID, req.Decision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": match.Status})
}

// MyMatches 查询当前用户参与的匹配，附带对方信息
func (h *Handler) MyMatches(c *gin.Context) {
	userID := currentUserID(c)
	status := models.MatchStatus(c.Query("status"))

	matches, err := h.Engine.ListMatches(c.Request.Context(), userID, status)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]models.MatchResponse, 0, len(matches))
	for _, m := range matches {
		partnerID := m.MatchedUserID
		if partnerID == userID {
			partnerID = m.UserID
		}
		resp := models.MatchResponse{
			ID:        m.ID,
			PartnerID: partnerID,
			Score:     m.Score,
			Topics:    m.Topics,
			MatchType: m.MatchType,
			Status:    m.Status,
			CreatedAt: m.CreatedAt,
		}
		var partner models.User
		if err := database.DB.First(&partner, partnerID).Error; err == nil {
			pr := partner.ToResponse()
			resp.Partner = &pr
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"matches": out})
}

// isStaff 当前用户是否为教师或管理员
func isStaff(c *gin.Context) bool {
	role, _ := c.Get("userRole")
	return role == models.RoleTeacher || role == models.RoleAdmin
}
