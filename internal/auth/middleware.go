package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
)

const currentUserKey = "currentUser"

// UserFinder resolves the subject of a token to a user.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// RequireUser returns middleware that only lets requests with a valid access token pass. The
// user the token was issued for is stored in the context, see CurrentUser.
func RequireUser(tokens *TokenService, users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			AbortUnauthorized(c, "Not authenticated")
			return
		}
		email, err := tokens.Validate(token, ScopeAccess)
		if err != nil {
			AbortUnauthorized(c, "Could not validate credentials")
			return
		}
		user, err := users.FindByEmail(c.Request.Context(), email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				AbortUnauthorized(c, "Could not validate credentials")
				return
			}
			slog.Error("loading authenticated user failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user authenticated by RequireUser, or nil on unprotected routes.
func CurrentUser(c *gin.Context) *model.User {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*model.User)
	return user
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}

// AbortUnauthorized stops the request with 401 and the bearer challenge header.
func AbortUnauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}
