package control

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine for the control API.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(requestLogger(logger), gin.Recovery())

	engine.GET("/health", h.Health)

	api := engine.Group("/api")
	api.GET("/state", h.GetState)
	api.POST("/domains", h.AddDomains)
	api.POST("/timer", h.StartTimer)
	api.POST("/show", h.Show)
	api.POST("/hide", h.Hide)
	api.POST("/quit", h.Quit)
	api.GET("/history", h.GetHistory)

	return engine
}

// requestLogger logs mutating requests at info and polling at debug.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Request.Method == "GET" {
			logger.Debug("control request", fields...)
			return
		}
		logger.Info("control request", fields...)
	}
}
