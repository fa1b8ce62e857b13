package api

import (
	"net/http"

	"sage-backend/internal/auth/delivery"
	"sage-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the gin engine with every route.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(logger.Component(h.log, "HTTP")), cors())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))

	session := delivery.SessionMiddleware(h.sessions, h.config.SessionCookie)
	mailCredential := delivery.MailCredentialMiddleware()

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// SSE endpoint; EventSource cannot send an Authorization header
		api.GET("/events", session, h.mailHandler.Events)

		mail := api.Group("")
		mail.Use(session, mailCredential)
		{
			mail.GET("/inbox", h.mailHandler.GetInbox)
			mail.GET("/threads/:threadId", h.mailHandler.GetThread)
			mail.POST("/view/select", h.mailHandler.SelectThread)
			mail.POST("/view/retry", h.mailHandler.RetryView)
			mail.POST("/mail/send", h.composeHandler.SendMail)
			mail.GET("/debug/messages/:id", h.mailHandler.DebugMessage)
		}

		view := api.Group("/view")
		view.Use(session)
		{
			view.GET("", h.mailHandler.GetView)
			view.POST("/messages/:id/toggle", h.mailHandler.ToggleMessage)
			view.DELETE("", h.mailHandler.CloseView)
		}

		aiRoutes := api.Group("/ai")
		aiRoutes.Use(session)
		{
			aiRoutes.POST("/summarize", h.composeHandler.Summarize)
			aiRoutes.POST("/compose", h.composeHandler.Compose)
		}

		voice := api.Group("/voice")
		voice.Use(session)
		{
			voice.POST("/transcribe", h.composeHandler.Transcribe)
			voice.POST("/draft", h.composeHandler.VoiceDraft)
			voice.POST("/command", h.composeHandler.VoiceCommand)
		}

		settings := api.Group("/settings")
		settings.Use(session)
		{
			settings.GET("/ai", h.settingsHandler.GetAISettings)
			settings.PUT("/ai", h.settingsHandler.UpdateAISettings)
			settings.POST("/ai/test", h.settingsHandler.TestOllamaConnection)
		}
	}
	return r
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Session-Token, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
