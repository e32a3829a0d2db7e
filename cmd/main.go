package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/BinLe1988/study-match/api"
	"github.com/BinLe1988/study-match/api/handlers"
	"github.com/BinLe1988/study-match/configs"
	"github.com/BinLe1988/study-match/database"
	"github.com/BinLe1988/study-match/pkg/grouping"
	applog "github.com/BinLe1988/study-match/pkg/logger"
	"github.com/BinLe1988/study-match/pkg/matching"
	"github.com/BinLe1988/study-match/pkg/scoring"
	"github.com/BinLe1988/study-match/pkg/store"
	"github.com/BinLe1988/study-match/pkg/utils"
)

func main() {
	// 加载配置
	cfg, err := configs.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger, err := applog.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 初始化JWT
	utils.InitJWT(cfg)

	// 初始化数据库连接
	if err := database.Initialize(cfg); err != nil {
		logger.Fatal("failed to initialize database", "err", err)
	}
	defer database.Close()

	// 装配存储与引擎
	profiles := store.NewGormProfileStore(database.DB)
	matches := store.NewGormMatchStore(database.DB)
	groups := store.NewGormGroupStore(database.DB)

	index := matching.NewIndex(profiles,
		time.Duration(cfg.Matching.CandidateIndexMaxStalenessS)*time.Second)
	scorer := scoring.NewScorer(cfg.Matching.Weights)

	engine := matching.NewEngine(profiles, matches, index, scorer, matching.Options{
		MinScore:       cfg.Matching.MinScore,
		MatchTTL:       time.Duration(cfg.Matching.MatchTTLDays) * 24 * time.Hour,
		DefaultLimit:   cfg.Matching.DefaultSuggestLimit,
		ProfileTimeout: time.Duration(cfg.Matching.ProfileReadTimeoutMs) * time.Millisecond,
		BulkTimeout:    time.Duration(cfg.Matching.BulkReadTimeoutMs) * time.Millisecond,
	}, logger)

	planner := grouping.NewPlanner(profiles, scorer, grouping.Options{
		DefaultSize: cfg.Matching.GroupDefaultSize,
		BulkTimeout: time.Duration(cfg.Matching.BulkReadTimeoutMs) * time.Millisecond,
	}, logger)

	// 定时清理到期的匹配建议
	c := cron.New()
	if _, err := c.AddFunc("*/10 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := engine.ExpireDue(ctx, time.Now()); err != nil {
			logger.Error("expiry sweep failed", "err", err)
		}
	}); err != nil {
		logger.Fatal("failed to schedule expiry sweep", "err", err)
	}
	c.Start()
	defer c.Stop()

	// 创建Gin实例
	router := gin.Default()
	router.Use(cors.Default())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// 设置路由
	h := handlers.New(engine, planner, profiles, groups, index, logger)
	api.SetupRouter(router, h)

	// 启动服务器
	logger.Info("server starting", "port", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("failed to start server", "err", err)
	}
}
