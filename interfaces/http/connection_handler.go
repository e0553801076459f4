package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"postpilot/domain/repository"
	"postpilot/infrastructure/logger"
	"postpilot/usecase"
)

type IConnectionHandler interface {
	Connect(ctx *gin.Context)
	Callback(ctx *gin.Context)
	List(ctx *gin.Context)
	Disconnect(ctx *gin.Context)
}

type ConnectionHandler struct {
	oauthUsecase usecase.IOAuthUsecase
	connRepo     repository.IConnection
}

func NewConnectionHandler(oauthUsecase usecase.IOAuthUsecase, connRepo repository.IConnection) IConnectionHandler {
	return &ConnectionHandler{oauthUsecase: oauthUsecase, connRepo: connRepo}
}

// Connect returns the platform authorization URL for the caller to open.
func (h *ConnectionHandler) Connect(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	platform := ctx.Param("platform")
	returnURL := ctx.Query("return_url")

	authURL, err := h.oauthUsecase.BuildAuthorizationURL(ctx.Request.Context(), userID, platform, returnURL)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, usecase.ErrUnsupportedPlatform):
			status = http.StatusNotFound
		case errors.Is(err, usecase.ErrMissingClientCredentials):
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"platform": platform, "auth_url": authURL})
}

// Callback is the OAuth redirect target. It is unauthenticated; the signed
// state token carries the user identity.
func (h *ConnectionHandler) Callback(ctx *gin.Context) {
	platform := ctx.Param("platform")
	if denied := ctx.Query("error"); denied != "" {
		logger.GetLogger().WithField("platform", platform).WithField("error", denied).Warn("OAuth flow denied")
		ctx.JSON(http.StatusBadRequest, gin.H{"error": denied, "description": ctx.Query("error_description")})
		return
	}
	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state"})
		return
	}

	outcome, err := h.oauthUsecase.ExchangeCode(ctx.Request.Context(), platform, code, state)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, usecase.ErrInvalidState):
			status = http.StatusBadRequest
		case errors.Is(err, usecase.ErrUnsupportedPlatform):
			status = http.StatusNotFound
		}
		logger.GetLogger().WithField("platform", platform).WithField("error", err.Error()).Warn("OAuth exchange failed")
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if outcome.ReturnURL != "" {
		ctx.Redirect(http.StatusFound, outcome.ReturnURL)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"platform": platform,
		"profile":  outcome.Profile,
		"status":   outcome.Connection.Status,
	})
}

// List shows the caller's connections. Tokens never appear in the response.
func (h *ConnectionHandler) List(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	conns, err := h.connRepo.ListByUser(ctx.Request.Context(), userID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"connections": conns})
}

func (h *ConnectionHandler) Disconnect(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	platform := ctx.Param("platform")
	if err := h.oauthUsecase.Disconnect(ctx.Request.Context(), userID, platform); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"platform": platform, "disconnected": true})
}
