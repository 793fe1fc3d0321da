package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/qrgate/config"
	"github.com/cppla/qrgate/controllers"
	"github.com/cppla/qrgate/middleware"
	"github.com/cppla/qrgate/utils"
)

// Controllers groups the handlers mounted by SetupRouter.
type Controllers struct {
	Gateway *controllers.GatewayController
	Stats   *controllers.StatsController
	Config  *controllers.ConfigController
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, ctl Controllers) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())

	// Access log goes to its own rolling file; fall back to the app logger when that fails
	accessLog := utils.Logger
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg); err == nil {
			accessLog = gl
		} else {
			utils.Sugar.Warnf("gin access log %s unavailable: %v", cfg.GinPath, err)
		}
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/", ctl.Gateway.Home)
	r.GET("/formulario", ctl.Gateway.Formulario)
	r.GET("/qr", ctl.Gateway.QR)
	r.GET("/reporte", ctl.Gateway.Reporte)
	r.GET("/health", ctl.Config.Health)

	api := r.Group("/api/v1")
	api.GET("/stats", ctl.Stats.GetStats)
	api.GET("/config/gate", ctl.Config.GetGate)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.PlainError(ctx, http.StatusNotFound, "not found")
	})

	return r
}
