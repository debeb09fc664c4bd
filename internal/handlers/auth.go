package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/middleware"
	"github.com/monocle-dev/taskhub/internal/response"
	"github.com/monocle-dev/taskhub/internal/services"
	"github.com/monocle-dev/taskhub/internal/types"
	"github.com/monocle-dev/taskhub/internal/utils"
	"github.com/monocle-dev/taskhub/internal/validation"
)

type sessionResponse struct {
	User         types.UserResponse `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

func (h *Handler) writeSession(ctx *gin.Context, session *services.Session, message string) {
	h.setCookie(ctx, middleware.AccessTokenCookie, session.AccessToken, h.AccessTTL)
	h.setCookie(ctx, RefreshTokenCookie, session.RefreshToken, h.RefreshTTL)

	response.OK(ctx, sessionResponse{
		User:         session.User.Response(),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}, message)
}

func (h *Handler) Register(ctx *gin.Context) {
	body, err := bindJSON[validation.Register](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	user, err := h.Accounts.Register(ctx.Request.Context(), body)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.Created(ctx, gin.H{"user": user.Response()}, "User registered successfully and verification email has been sent on your email")
}

func (h *Handler) Login(ctx *gin.Context) {
	body, err := bindJSON[validation.Login](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	session, err := h.Accounts.Login(ctx.Request.Context(), body.Email, body.Password)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	h.writeSession(ctx, session, "User logged in successfully")
}

func (h *Handler) Logout(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Accounts.Logout(ctx.Request.Context(), userID); err != nil {
		response.Error(ctx, err)
		return
	}

	h.setCookie(ctx, middleware.AccessTokenCookie, "", 0)
	h.setCookie(ctx, RefreshTokenCookie, "", 0)

	response.OK(ctx, gin.H{}, "User logged out")
}

func (h *Handler) CurrentUser(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	user, err := h.Accounts.CurrentUser(ctx.Request.Context(), userID)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, user.Response(), "Current user fetched successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) RefreshToken(ctx *gin.Context) {
	token, _ := ctx.Cookie(RefreshTokenCookie)

	if token == "" {
		var body refreshRequest
		if err := ctx.ShouldBindJSON(&body); err == nil {
			token = body.RefreshToken
		}
	}

	session, err := h.Accounts.Refresh(ctx.Request.Context(), token)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	h.writeSession(ctx, session, "Access token refreshed")
}

func (h *Handler) VerifyEmail(ctx *gin.Context) {
	if err := h.Accounts.VerifyEmail(ctx.Request.Context(), ctx.Param("token")); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{"isEmailVerified": true}, "Email is verified")
}

func (h *Handler) ResendEmailVerification(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Accounts.ResendVerification(ctx.Request.Context(), userID); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{}, "Mail has been sent to your mail ID")
}

func (h *Handler) ForgotPassword(ctx *gin.Context) {
	body, err := bindJSON[validation.ForgotPassword](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Accounts.ForgotPassword(ctx.Request.Context(), body.Email); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{}, "Password reset mail has been sent on your mail id")
}

func (h *Handler) ResetPassword(ctx *gin.Context) {
	body, err := bindJSON[validation.ResetPassword](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Accounts.ResetPassword(ctx.Request.Context(), ctx.Param("token"), body.NewPassword); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{}, "Password reset successfully")
}

func (h *Handler) ChangePassword(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bindJSON[validation.ChangePassword](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Accounts.ChangePassword(ctx.Request.Context(), userID, body.OldPassword, body.NewPassword); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{}, "Password changed successfully")
}

// SetGlobalRole is the admin-only endpoint for promoting or demoting users.
func (h *Handler) SetGlobalRole(ctx *gin.Context) {
	userID, err := utils.ParseID(ctx, utils.UserIDParam)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bindJSON[validation.SetGlobalRole](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	identity, err := utils.GetIdentity(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if identity.UserID == userID && types.Role(body.Role) != types.RoleAdmin {
		response.Error(ctx, apierr.BadRequest("Admins cannot demote themselves"))
		return
	}

	user, err := h.Accounts.SetGlobalRole(ctx.Request.Context(), userID, types.Role(body.Role))

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.JSON(ctx, http.StatusOK, user.Response(), "User role updated successfully")
}
