package httpapi

import (
	"net/http"

	"voicebridge/internal/telephony"

	"github.com/gin-gonic/gin"
)

// Provider-facing webhook handlers. These endpoints should be protected by
// provider signature validation in production.

type inviteWebhookRequest struct {
	ProviderCallID string            `json:"provider_call_id"`
	From           string            `json:"from"`
	To             string            `json:"to"`
	CustomParams   map[string]string `json:"custom_params,omitempty"`
}

func (h Handlers) InviteWebhook(c *gin.Context) {
	var req inviteWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ProviderCallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "provider_call_id required"})
		return
	}
	inv := h.Facade.HandleInvite(c.Request.Context(), telephony.Invite{
		ProviderCallID: req.ProviderCallID,
		From:           req.From,
		To:             req.To,
		CustomParams:   req.CustomParams,
	})
	c.JSON(http.StatusOK, gin.H{"invite_id": inv.ID})
}

type cancelWebhookRequest struct {
	ProviderCallID string `json:"provider_call_id"`
}

func (h Handlers) CancelWebhook(c *gin.Context) {
	var req cancelWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProviderCallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "provider_call_id required"})
		return
	}
	// A cancel for an unknown call id is still OK: the invite may already be
	// answered or rejected.
	h.Facade.HandleCancelledInvite(c.Request.Context(), req.ProviderCallID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Notification-surface actions.

func (h Handlers) NotificationAccept(c *gin.Context) {
	inviteID := c.Param("invite_id")
	h.awaitCall(c, func(done func(string, error)) {
		h.Bridge.AcceptFromNotification(c.Request.Context(), inviteID, done)
	})
}

func (h Handlers) NotificationReject(c *gin.Context) {
	if err := h.Bridge.RejectFromNotification(c.Request.Context(), c.Param("invite_id")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h Handlers) NotificationRelaunch(c *gin.Context) {
	h.Bridge.HandleRelaunch(c.Param("invite_id"))
	c.JSON(http.StatusOK, h.Facade.Status())
}
