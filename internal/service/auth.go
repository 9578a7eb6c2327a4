package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"gitlab.com/dirk.krummacker/contacts-api/internal/auth"
	"gitlab.com/dirk.krummacker/contacts-api/internal/avatar"
	"gitlab.com/dirk.krummacker/contacts-api/internal/metrics"
	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
)

// mailTimeout bounds the delivery of a confirmation email in the background.
const mailTimeout = 30 * time.Second

// signup registers a new account and mails a confirmation link to it. A Gravatar image becomes
// the initial avatar when one can be derived from the email address.
//
//	> curl http://localhost:8080/api/auth/signup --request "POST" --header "Content-Type: application/json" --data '{"username": "bobby", "email": "bob@example.com", "password": "secret1"}'
func (h *handler) signup(c *gin.Context) {
	var req model.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, inBody, err)
		return
	}
	ctx := c.Request.Context()

	_, err := h.Users.FindByEmail(ctx, req.Email)
	if err == nil {
		abortWithDetail(c, http.StatusConflict, "Account already exists")
		return
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		abortWithServerError(c, "looking up user failed", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		abortWithServerError(c, "hashing password failed", err)
		return
	}
	user := &model.User{Username: req.Username, Email: req.Email, Password: hash}
	if url, err := avatar.GravatarURL(req.Email); err != nil {
		slog.Warn("no gravatar for new user", "email", req.Email, "error", err)
	} else {
		user.Avatar = &url
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			abortWithDetail(c, http.StatusConflict, "Account already exists")
			return
		}
		abortWithServerError(c, "creating user failed", err)
		return
	}
	metrics.UsersRegistered.Inc()

	h.sendConfirmation(c, user.Email, user.Username)
	c.JSON(http.StatusCreated, model.SignupResponse{
		User:   model.NewUserResponse(user),
		Detail: "User successfully created. Check your email for confirmation.",
	})
}

// login exchanges email and password for a token pair. The email is sent in the form field
// 'username'.
//
//	> curl http://localhost:8080/api/auth/login --request "POST" --data "username=bob@example.com&password=secret1"
func (h *handler) login(c *gin.Context) {
	var form model.LoginForm
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		abortWithValidation(c, inBody, err)
		return
	}
	user, err := h.Users.FindByEmail(c.Request.Context(), form.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			abortWithDetail(c, http.StatusUnauthorized, "Invalid email")
			return
		}
		abortWithServerError(c, "looking up user failed", err)
		return
	}
	if !user.Confirmed {
		abortWithDetail(c, http.StatusUnauthorized, "Email not confirmed")
		return
	}
	if !auth.VerifyPassword(user.Password, form.Password) {
		abortWithDetail(c, http.StatusUnauthorized, "Invalid password")
		return
	}
	h.issueTokens(c, user)
}

// refreshToken exchanges the stored refresh token for a new token pair. Presenting any other
// refresh token revokes the stored one, so that a leaked token can only be used once.
//
//	> curl http://localhost:8080/api/auth/refresh_token --header "Authorization: Bearer $REFRESH_TOKEN"
func (h *handler) refreshToken(c *gin.Context) {
	token, ok := auth.BearerToken(c)
	if !ok {
		auth.AbortUnauthorized(c, "Not authenticated")
		return
	}
	email, err := h.Tokens.Validate(token, auth.ScopeRefresh)
	if err != nil {
		auth.AbortUnauthorized(c, "Could not validate credentials")
		return
	}
	ctx := c.Request.Context()
	user, err := h.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.AbortUnauthorized(c, "Could not validate credentials")
			return
		}
		abortWithServerError(c, "looking up user failed", err)
		return
	}
	if user.RefreshToken == nil || *user.RefreshToken != token {
		if err := h.Users.UpdateRefreshToken(ctx, user, nil); err != nil {
			abortWithServerError(c, "revoking refresh token failed", err)
			return
		}
		abortWithDetail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	h.issueTokens(c, user)
}

// issueTokens creates a new token pair for user, stores the refresh token and responds with the
// pair.
func (h *handler) issueTokens(c *gin.Context, user *model.User) {
	accessToken, err := h.Tokens.CreateAccessToken(user.Email)
	if err != nil {
		abortWithServerError(c, "creating access token failed", err)
		return
	}
	refreshToken, err := h.Tokens.CreateRefreshToken(user.Email)
	if err != nil {
		abortWithServerError(c, "creating refresh token failed", err)
		return
	}
	if err := h.Users.UpdateRefreshToken(c.Request.Context(), user, &refreshToken); err != nil {
		abortWithServerError(c, "storing refresh token failed", err)
		return
	}
	c.JSON(http.StatusOK, model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	})
}

// confirmedEmail marks the email address carried by the verification token as confirmed.
//
//	> curl http://localhost:8080/api/auth/confirmed_email/$EMAIL_TOKEN
func (h *handler) confirmedEmail(c *gin.Context) {
	email, err := h.Tokens.Validate(c.Param("token"), auth.ScopeEmail)
	if err != nil {
		abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid token for email verification")
		return
	}
	ctx := c.Request.Context()
	user, err := h.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			abortWithDetail(c, http.StatusBadRequest, "Verification error")
			return
		}
		abortWithServerError(c, "looking up user failed", err)
		return
	}
	if user.Confirmed {
		c.JSON(http.StatusOK, gin.H{"message": "Your email is already confirmed"})
		return
	}
	if err := h.Users.MarkConfirmed(ctx, email); err != nil {
		abortWithServerError(c, "confirming email failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email confirmed"})
}

// requestEmail sends a new confirmation link. Unknown and already confirmed addresses get the
// same answer, so the endpoint does not reveal which accounts exist.
//
//	> curl http://localhost:8080/api/auth/request_email --request "POST" --header "Content-Type: application/json" --data '{"email": "bob@example.com"}'
func (h *handler) requestEmail(c *gin.Context) {
	var req model.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, inBody, err)
		return
	}
	user, err := h.Users.FindByEmail(c.Request.Context(), req.Email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
	case err != nil:
		abortWithServerError(c, "looking up user failed", err)
		return
	case user.Confirmed:
	default:
		h.sendConfirmation(c, user.Email, user.Username)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Check your email for confirmation."})
}

// sendConfirmation mails the verification link in the background. The request does not wait
// for the mail relay and is not affected by its failures.
func (h *handler) sendConfirmation(c *gin.Context, email, username string) {
	if h.Mailer == nil {
		return
	}
	host := h.baseURL(c)
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, mailTimeout)
		defer cancel()
		h.Mailer.SendConfirmation(ctx, email, username, host)
	}()
}

// baseURL is the public address of the service, ending with a slash. Without a configured one
// it is the address under which the client reached the service.
func (h *handler) baseURL(c *gin.Context) string {
	if h.PublicBaseURL != "" {
		return strings.TrimSuffix(h.PublicBaseURL, "/") + "/"
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/"
}
