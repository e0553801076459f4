package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"postpilot/infrastructure/configuration"
	"postpilot/infrastructure/logger"
	"postpilot/usecase"
)

type IPostHandler interface {
	Create(ctx *gin.Context)
	Get(ctx *gin.Context)
	List(ctx *gin.Context)
	ComposeFromTrend(ctx *gin.Context)
	GetPlatforms(ctx *gin.Context)
	ProcessQueue(ctx *gin.Context)
}

type PostHandler struct {
	postUsecase usecase.IPostUsecase
	queue       usecase.IPublishQueue
}

func NewPostHandler(postUsecase usecase.IPostUsecase, queue usecase.IPublishQueue) IPostHandler {
	return &PostHandler{postUsecase: postUsecase, queue: queue}
}

func (h *PostHandler) Create(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	var input usecase.CreatePostInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	post, err := h.postUsecase.Create(ctx.Request.Context(), userID, input)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, usecase.ErrEmptyContent),
			errors.Is(err, usecase.ErrNoPlatforms),
			errors.Is(err, usecase.ErrUnsupportedPlatform):
			status = http.StatusBadRequest
		}
		logger.GetLogger().WithField("user_id", userID).WithField("error", err.Error()).Warn("Post creation failed")
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"post": post})
}

func (h *PostHandler) Get(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	postID, err := strconv.ParseInt(ctx.Param("postId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	post, err := h.postUsecase.Get(ctx.Request.Context(), userID, postID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrPostNotOwned) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"post": post})
}

func (h *PostHandler) List(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	limit := 50
	if v := ctx.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	posts, err := h.postUsecase.List(ctx.Request.Context(), userID, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"posts": posts})
}

type composeRequest struct {
	Platforms []string `json:"platforms"`
}

// ComposeFromTrend builds a post from the latest trend item and queues it.
func (h *PostHandler) ComposeFromTrend(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	var req composeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	post, err := h.postUsecase.ComposeFromTrend(ctx.Request.Context(), userID, req.Platforms, nil)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, usecase.ErrNoRecentTrend):
			status = http.StatusNotFound
		case errors.Is(err, usecase.ErrNoPlatforms), errors.Is(err, usecase.ErrUnsupportedPlatform):
			status = http.StatusBadRequest
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"post": post})
}

func (h *PostHandler) GetPlatforms(ctx *gin.Context) {
	names := configuration.PlatformNames()
	caps := make([]gin.H, 0, len(names))
	for _, name := range names {
		p, _ := configuration.GetPlatform(name)
		caps = append(caps, gin.H{
			"platform":   name,
			"configured": p.ClientID != "" && p.ClientSecret != "",
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"platforms": caps})
}

// ProcessQueue triggers a drain outside the ticker (admin/dev utility).
func (h *PostHandler) ProcessQueue(ctx *gin.Context) {
	if err := h.queue.Drain(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"processed": false, "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"processed": true})
}
