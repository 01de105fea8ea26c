package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/anonid/config"
	"github.com/cppla/anonid/controllers"
	"github.com/cppla/anonid/metrics"
	"github.com/cppla/anonid/middleware"
	"github.com/cppla/anonid/services"
	"github.com/cppla/anonid/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, svc *services.Services, throttle *utils.RegisterThrottle, logger *zap.Logger) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file when GinPath is set.
	gl := logger
	if cfg.GinPath != "" {
		if l, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			gl = l
		} else {
			logger.Warn("gin log file unavailable, using app logger", zap.Error(err))
		}
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, true))
	r.Use(metrics.Middleware())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", utils.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", utils.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	accountController := controllers.NewAccountController(svc)
	ledgerController := controllers.NewLedgerController(svc)
	attendanceController := controllers.NewAttendanceController(svc)
	recoveryController := controllers.NewRecoveryController(svc)
	discussionController := controllers.NewDiscussionController(svc)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))

	api.POST("/registerDevice", middleware.RegisterThrottle(throttle), accountController.RegisterDevice)
	api.POST("/verifyUID", accountController.VerifyUID)
	api.POST("/updateNickname", accountController.UpdateNickname)
	api.POST("/toggleFavorite", accountController.ToggleFavorite)

	api.POST("/updateTokens", ledgerController.UpdateTokens)
	api.POST("/getLedgerHistory", ledgerController.GetLedgerHistory)

	api.POST("/claimDailyReward", attendanceController.ClaimDailyReward)
	api.POST("/getAttendanceStatus", attendanceController.GetAttendanceStatus)

	api.POST("/getOrCreateRecoveryCode", recoveryController.GetOrCreateRecoveryCode)
	api.POST("/transferAccountData", recoveryController.TransferAccountData)

	api.POST("/createComment", discussionController.CreateComment)
	api.POST("/getPopularDiscussions", discussionController.GetPopularDiscussions)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
