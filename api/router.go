package api

import (
	"github.com/gin-gonic/gin"

	"github.com/BinLe1988/study-match/api/handlers"
	"github.com/BinLe1988/study-match/api/middleware"
	"github.com/BinLe1988/study-match/models"
)

// SetupRouter 设置API路由
func SetupRouter(router *gin.Engine, h *handlers.Handler) {
	// 公共API
	public := router.Group("/api")
	{
		// 认证相关
		public.POST("/auth/login", handlers.Login)
		public.POST("/auth/register", handlers.Register)
	}

	// 需要认证的API
	authorized := router.Group("/api")
	authorized.Use(middleware.Auth())
	{
		// 用户相关
		authorized.GET("/user", handlers.GetCurrentUser)
		authorized.GET("/user/profile", h.GetUserProfile)
		authorized.PUT("/user/profile", h.UpdateUserProfile)
		authorized.POST("/auth/logout", handlers.Logout)

		// 匹配相关
		authorized.POST("/match/suggest", h.SuggestMatches)
		authorized.POST("/match/respond", h.RespondMatch)
		authorized.GET("/match/mine", h.MyMatches)

		// 小组相关
		authorized.POST("/groups", h.CreateGroup)
		authorized.GET("/groups/:id", h.GetGroup)
		authorized.POST("/groups/:id/join", h.JoinGroup)
		authorized.POST("/groups/:id/leave", h.LeaveGroup)

		// 小组编排仅限教师与管理员
		planning := authorized.Group("")
		planning.Use(middleware.RequireRole(models.RoleTeacher, models.RoleAdmin))
		planning.POST("/groups/plan", h.PlanGroups)
	}
}
