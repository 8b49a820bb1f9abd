package httpapi

import (
	"errors"
	"net/http"
	"time"

	"voicebridge/internal/calllog"
	"voicebridge/internal/invite"
	"voicebridge/internal/notification"
	"voicebridge/internal/orchestrator"
	"voicebridge/internal/permission"
	"voicebridge/internal/session"
	"voicebridge/internal/token"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Facade  *orchestrator.Facade
	Bridge  *notification.Bridge
	History *calllog.Service

	// PendingWait bounds how long call endpoints wait for the permission
	// flow before answering 202.
	PendingWait time.Duration
}

func (h Handlers) pendingWait() time.Duration {
	if h.PendingWait > 0 {
		return h.PendingWait
	}
	return 2 * time.Second
}

// statusFor maps domain errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, token.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, invite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoActiveCall):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, permission.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, permission.ErrDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

// --- Auth ---

type loginRequest struct {
	AccessToken string `json:"access_token"`
	PushToken   string `json:"push_token,omitempty"`
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AccessToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "access_token required"})
		return
	}
	if req.PushToken != "" {
		if err := h.Facade.SetPushToken(c.Request.Context(), req.PushToken); err != nil {
			abortWith(c, err)
			return
		}
	}
	if err := h.Facade.Login(c.Request.Context(), req.AccessToken); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Facade.Status())
}

func (h Handlers) Logout(c *gin.Context) {
	if err := h.Facade.Logout(c.Request.Context()); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

type pushTokenRequest struct {
	PushToken string `json:"push_token"`
}

func (h Handlers) SetPushToken(c *gin.Context) {
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PushToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "push_token required"})
		return
	}
	if err := h.Facade.SetPushToken(c.Request.Context(), req.PushToken); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Status ---

func (h Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Facade.Status())
}

// SessionStatus returns only the active-call slice of the snapshot.
func (h Handlers) SessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Facade.Status().Session)
}

// --- Calls ---

type makeCallRequest struct {
	To string `json:"to"`
}

type callOutcome struct {
	sid string
	err error
}

// awaitCall bridges the callback-style call operations into a request
// handler: success and failure answer synchronously, while an unresolved
// permission flow answers 202 and the continuation finishes in the
// background.
func (h Handlers) awaitCall(c *gin.Context, start func(done func(string, error))) {
	outcome := make(chan callOutcome, 1)
	start(func(sid string, err error) {
		outcome <- callOutcome{sid: sid, err: err}
	})

	select {
	case out := <-outcome:
		if out.err != nil {
			abortWith(c, out.err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sid": out.sid})
	case <-time.After(h.pendingWait()):
		c.JSON(http.StatusAccepted, gin.H{"status": "permission_pending"})
	case <-c.Request.Context().Done():
		c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"status": "permission_pending"})
	}
}

func (h Handlers) MakeCall(c *gin.Context) {
	var req makeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h.awaitCall(c, func(done func(string, error)) {
		h.Facade.MakeCall(c.Request.Context(), req.To, done)
	})
}

func (h Handlers) AcceptCall(c *gin.Context) {
	inviteID := c.Param("invite_id")
	h.awaitCall(c, func(done func(string, error)) {
		h.Facade.AcceptCall(c.Request.Context(), inviteID, done)
	})
}

func (h Handlers) RejectCall(c *gin.Context) {
	if err := h.Facade.RejectCall(c.Request.Context(), c.Param("invite_id")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h Handlers) EndCall(c *gin.Context) {
	h.Facade.EndCall()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h Handlers) toggle(c *gin.Context, apply func(bool) error) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "enabled required"})
		return
	}
	if err := apply(*req.Enabled); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Facade.Status().Session)
}

func (h Handlers) SetMuted(c *gin.Context)   { h.toggle(c, h.Facade.SetMuted) }
func (h Handlers) SetHold(c *gin.Context)    { h.toggle(c, h.Facade.SetHold) }
func (h Handlers) SetSpeaker(c *gin.Context) { h.toggle(c, h.Facade.SetSpeaker) }

// --- History ---

func (h Handlers) CallHistory(c *gin.Context) {
	entries, err := h.History.Recent(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	if entries == nil {
		entries = []calllog.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// --- Permission ---

func (h Handlers) RequestMicPermission(c *gin.Context) {
	outcome := make(chan error, 1)
	h.Facade.RequestMicPermission(func(err error) { outcome <- err })

	select {
	case err := <-outcome:
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"granted": true})
	case <-time.After(h.pendingWait()):
		c.JSON(http.StatusAccepted, gin.H{"status": "permission_pending"})
	case <-c.Request.Context().Done():
		c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"status": "permission_pending"})
	}
}

type promptResultRequest struct {
	Granted *bool `json:"granted"`
}

func (h Handlers) PermissionPromptResult(c *gin.Context) {
	var req promptResultRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Granted == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "granted required"})
		return
	}
	h.Facade.OnPermissionPromptResult(*req.Granted)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) RetryPermission(c *gin.Context) {
	if err := h.Facade.RetryPermission(); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "requested"})
}

func (h Handlers) OpenPermissionSettings(c *gin.Context) {
	if err := h.Facade.OpenPermissionSettings(); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "awaiting_settings"})
}

func (h Handlers) ForegroundRegained(c *gin.Context) {
	h.Facade.OnForegroundRegained()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
