package main

import (
	"net/http"

	"voicebridge/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These should be protected by provider signature validation in production.
	webhooks := r.Group("/webhooks/voice")
	{
		webhooks.POST("/invite", h.InviteWebhook)
		webhooks.POST("/cancel", h.CancelWebhook)
	}

	// Notification-surface actions.
	notifications := r.Group("/notifications")
	{
		notifications.POST("/:invite_id/accept", h.NotificationAccept)
		notifications.POST("/:invite_id/reject", h.NotificationReject)
		notifications.POST("/:invite_id/relaunch", h.NotificationRelaunch)
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/login", h.Login)
		v1.POST("/logout", h.Logout)
		v1.POST("/push-token", h.SetPushToken)
		v1.GET("/status", h.Status)
		v1.GET("/session", h.SessionStatus)
		v1.GET("/history", h.CallHistory)

		calls := v1.Group("/calls")
		{
			calls.POST("", h.MakeCall)
			calls.POST("/:invite_id/accept", h.AcceptCall)
			calls.POST("/:invite_id/reject", h.RejectCall)
			calls.POST("/end", h.EndCall)
			calls.POST("/mute", h.SetMuted)
			calls.POST("/hold", h.SetHold)
			calls.POST("/speaker", h.SetSpeaker)
		}

		perm := v1.Group("/permission")
		{
			perm.POST("/request", h.RequestMicPermission)
			perm.POST("/prompt-result", h.PermissionPromptResult)
			perm.POST("/retry", h.RetryPermission)
			perm.POST("/settings", h.OpenPermissionSettings)
		}

		v1.POST("/foreground", h.ForegroundRegained)
	}
}
