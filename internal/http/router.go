// Package http exposes the local control API used to drive a voice session
// from outside the process.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huisuda/voicelink/internal/settings"
	"github.com/huisuda/voicelink/internal/storage"
)

// Service is the session surface the control API drives.
type Service interface {
	Connect(ctx context.Context) error
	Disconnect()
	Reconnect(ctx context.Context) error
	Established() bool
	ConversationState() string

	SendText(ctx context.Context, text string) error

	Voices() []settings.Voice
	SelectVoice(id int) error
	SetRegion(region string)
	SetLanguage(code string)

	Transcripts() []storage.TranscriptInfo
	Transcript(uid string) ([]storage.Entry, error)
	DeleteTranscript(uid string) bool
}

// NewRouter builds the control API router.
func NewRouter(service Service, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"connected": service.Established(),
			"state":     service.ConversationState(),
		})
	})

	api.POST("/connect", func(c *gin.Context) {
		if err := service.Connect(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"connected": true})
	})

	api.POST("/disconnect", func(c *gin.Context) {
		service.Disconnect()
		c.JSON(http.StatusOK, gin.H{"connected": false})
	})

	api.POST("/reconnect", func(c *gin.Context) {
		if err := service.Reconnect(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"connected": true})
	})

	api.POST("/message", func(c *gin.Context) {
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := service.SendText(c.Request.Context(), req.Text); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sent": true})
	})

	api.GET("/voices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"voices": service.Voices()})
	})

	api.POST("/voice", func(c *gin.Context) {
		var req struct {
			ID int `json:"id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := service.SelectVoice(req.ID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"voice": req.ID})
	})

	api.POST("/settings", func(c *gin.Context) {
		var req struct {
			Region   string `json:"region"`
			Language string `json:"language"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		service.SetRegion(req.Region)
		service.SetLanguage(req.Language)
		c.JSON(http.StatusOK, gin.H{"updated": true})
	})

	api.GET("/transcripts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"transcripts": service.Transcripts()})
	})

	api.GET("/transcripts/:uid", func(c *gin.Context) {
		entries, err := service.Transcript(c.Param("uid"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	api.DELETE("/transcripts/:uid", func(c *gin.Context) {
		if !service.DeleteTranscript(c.Param("uid")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transcript not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
		)
	}
}
