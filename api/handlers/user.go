package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BinLe1988/study-match/models"
)

// GetUserProfile 获取当前用户画像
func (h *Handler) GetUserProfile(c *gin.Context) {
	profile, err := h.Profiles.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UpdateUserProfile 按字段更新当前用户画像
// 写入成功后通知候选索引保持一致
func (h *Handler) UpdateUserProfile(c *gin.Context) {
	var patch models.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.Profiles.Upsert(c.Request.Context(), currentUserID(c), &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Index.NotifyUpsert(profile)

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"profile": profile,
	})
}
