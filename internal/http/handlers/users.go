package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/resumeforge/internal/apperr"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/geocoder89/resumeforge/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type UserDirectory interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
}

type UsersHandler struct {
	users UserDirectory
}

func NewUsersHandler(users UserDirectory) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) Details(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}
	h.respondUser(ctx, userID)
}

func (h *UsersHandler) GetByID(ctx *gin.Context) {
	h.respondUser(ctx, ctx.Param("id"))
}

func (h *UsersHandler) List(ctx *gin.Context) {
	users, err := h.users.List(ctx.Request.Context())
	if err != nil {
		RespondErr(ctx, apperr.Internal("Could not list users", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UsersHandler) respondUser(ctx *gin.Context, id string) {
	u, err := h.users.GetByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondErr(ctx, apperr.NotFound("user_not_found", "User not found"))
			return
		}
		RespondErr(ctx, apperr.Internal("Could not load user", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}
