package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/mks-gateway/internal/api/middleware"
)

// RegisterRoutes 注册 /api/v1 路由
func RegisterRoutes(r gin.IRouter, h *Handler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	v1 := r.Group("/api/v1")
	if authCfg.Enabled() {
		v1.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled")
	}

	v1.POST("/decode", h.Decode)
	v1.GET("/commands", h.ListCommands)
	v1.GET("/motors", h.ListMotors)
	v1.GET("/motors/:addr", h.GetMotor)
	v1.POST("/encode/position", h.EncodePosition)
	v1.POST("/encode/speed", h.EncodeSpeed)

	logger.Info("api routes registered", zap.Int("endpoints", 6))
}
