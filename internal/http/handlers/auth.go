package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/resumeforge/internal/auth"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refresh_token"

type AuthService interface {
	Signup(ctx context.Context, email, password string) (user.User, error)
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	Refresh(ctx context.Context, rawRefresh string) (auth.TokenPair, error)
	Logout(ctx context.Context, rawRefresh string) error
}

type CookieConfig struct {
	Secure bool
	Path   string
}

type AuthHandler struct {
	svc     AuthService
	cookie  CookieConfig
	timeout time.Duration
}

func NewAuthHandler(svc AuthService, cookie CookieConfig) *AuthHandler {
	if cookie.Path == "" {
		cookie.Path = "/api/auth"
	}
	return &AuthHandler{svc: svc, cookie: cookie, timeout: 5 * time.Second}
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	User         *user.User `json:"user,omitempty"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.SignUpRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	u, err := h.svc.Signup(cctx, req.Email, req.Password)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"user":    u,
		"message": "User registered successfully",
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.Login(cctx, req.Email, req.Password)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	h.setRefreshCookie(ctx, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)

	ctx.JSON(http.StatusOK, tokenResponse{
		User:         &res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

// Refresh accepts the token in the JSON body or, failing that, the cookie.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw := h.presentedRefreshToken(ctx)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	pair, err := h.svc.Refresh(cctx, raw)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	h.setRefreshCookie(ctx, pair.RefreshToken, pair.RefreshExpiresAt)

	ctx.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw := h.presentedRefreshToken(ctx)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.svc.Logout(cctx, raw); err != nil {
		RespondErr(ctx, err)
		return
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) presentedRefreshToken(ctx *gin.Context) string {
	var req RefreshRequest
	if ctx.Request.ContentLength != 0 {
		// a malformed body falls through to the cookie
		_ = ctx.ShouldBindJSON(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}

	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return raw
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, raw, maxAge, h.cookie.Path, "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, h.cookie.Path, "", h.cookie.Secure, true)
}
