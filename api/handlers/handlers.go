package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/BinLe1988/study-match/pkg/apperr"
	"github.com/BinLe1988/study-match/pkg/grouping"
	"github.com/BinLe1988/study-match/pkg/logger"
	"github.com/BinLe1988/study-match/pkg/matching"
	"github.com/BinLe1988/study-match/pkg/store"
)

// Handler 聚合引擎与存储依赖，供路由装配
type Handler struct {
	Engine   *matching.Engine
	Planner  *grouping.Planner
	Profiles store.ProfileStore
	Groups   store.GroupStore
	Index    *matching.Index
	Log      *logger.Logger
}

// New 创建处理器
func New(engine *matching.Engine, planner *grouping.Planner, profiles store.ProfileStore,
	groups store.GroupStore, index *matching.Index, log *logger.Logger) *Handler {
	return &Handler{
		Engine:   engine,
		Planner:  planner,
		Profiles: profiles,
		Groups:   groups,
		Index:    index,
		Log:      log,
	}
}

// respondError 将领域错误映射为HTTP响应，不泄露内部堆栈
func respondError(c *gin.Context, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": e.Message, "tag": string(e.Tag)})
		return
	}
	c.JSON(500, gin.H{"error": "internal error"})
}

// currentUserID 取认证中间件写入的用户ID
func currentUserID(c *gin.Context) uint {
	id, _ := c.Get("userID")
	uid, _ := id.(uint)
	return uid
}
