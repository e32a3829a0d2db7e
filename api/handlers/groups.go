package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/BinLe1988/study-match/models"
)

// PlanGroups 按主题为候选池编排学习小组，提案不落库
func (h *Handler) PlanGroups(c *gin.Context) {
	var req models.GroupPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.Planner.PlanGroups(c.Request.Context(), req.Topic, req.Pool, req.TargetSize, req.MaxGroups, req.Difficulty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"groups":     plan.Groups,
		"unassigned": plan.Unassigned,
	})
}

// CreateGroup 创建学习小组，创建者自动成为成员
func (h *Handler) CreateGroup(c *gin.Context) {
	var req models.GroupCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	difficulty := req.DifficultyLevel
	if difficulty == "" {
		difficulty = models.DifficultyIntermediate
	}
	if !difficulty.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid difficulty_level"})
		return
	}

	maxMembers := req.MaxMembers
	if maxMembers == 0 {
		maxMembers = models.GroupMaxCapacity
	}

	group := &models.StudyGroup{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Topic:           req.Topic,
		Subject:         req.Subject,
		DifficultyLevel: difficulty,
		CreatorID:       currentUserID(c),
		MemberIDs:       datatypes.NewJSONSlice(req.InitialMembers),
		MaxMembers:      maxMembers,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}

	if err := h.Groups.Create(c.Request.Context(), group); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group_id": group.ID})
}

// GetGroup 查询学习小组详情
func (h *Handler) GetGroup(c *gin.Context) {
	group, err := h.Groups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// JoinGroup 加入学习小组
func (h *Handler) JoinGroup(c *gin.Context) {
	var req models.GroupJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = currentUserID(c)
	}
	if userID != currentUserID(c) && !isStaff(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot join on behalf of another user"})
		return
	}

	group, err := h.Groups.AddMember(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Joined group successfully",
		"group":   group,
	})
}

// LeaveGroup 退出学习小组
func (h *Handler) LeaveGroup(c *gin.Context) {
	group, err := h.Groups.RemoveMember(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Left group successfully",
		"group":   group,
	})
}
