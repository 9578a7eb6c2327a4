package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contacts-api/internal/auth"
	"gitlab.com/dirk.krummacker/contacts-api/internal/metrics"
	"gitlab.com/dirk.krummacker/contacts-api/internal/ratelimit"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
)

// healthTimeout bounds the database round trip of the health check.
const healthTimeout = 2 * time.Second

// ConfirmationSender mails the email verification link to a user.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, email, username, host string)
}

// AvatarUploader stores an avatar image and returns its public URL.
type AvatarUploader interface {
	Upload(ctx context.Context, email string, file io.Reader, contentType string) (string, error)
}

// Dependencies are the collaborators the HTTP handlers work with. The database can be a real
// database for production use or a mock database within unit tests.
type Dependencies struct {
	DB       *sqlx.DB
	Contacts *repository.ContactRepository
	Users    *repository.UserRepository
	Tokens   *auth.TokenService
	Mailer   ConfirmationSender
	Avatars  AvatarUploader

	// Limiter throttles the contact list. Nil disables throttling.
	Limiter ratelimit.Limiter
	// TrustedProxies may set X-Forwarded-For. Nil trusts no proxy.
	TrustedProxies []string
	// PublicBaseURL prefixes links in emails. Empty falls back to the request's Host.
	PublicBaseURL string

	GinLogging bool
}

// handler carries the dependencies into the gin handler functions.
type handler struct {
	*Dependencies
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func SetupHttpRouter(deps *Dependencies) *gin.Engine {
	registerFieldNames()

	var router *gin.Engine
	if deps.GinLogging {
		router = gin.Default()
	} else {
		slog.Info("Turning off HTTP request logging.")
		router = gin.New()
		router.Use(gin.Recovery())
	}
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		slog.Error("invalid trusted proxies, trusting none", "proxies", deps.TrustedProxies, "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(metrics.Middleware())

	h := &handler{deps}
	requireUser := auth.RequireUser(deps.Tokens, deps.Users)

	router.GET("/", h.root)
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api")
	api.GET("/healthchecker", h.healthchecker)

	contacts := api.Group("/users")
	contacts.GET("/", ratelimit.Middleware(deps.Limiter, "contacts"), h.findContacts)
	contacts.GET("/:id", h.findContactByID)
	contacts.POST("/", requireUser, h.createContact)
	contacts.PUT("/:id", requireUser, h.updateContactByID)
	contacts.DELETE("/:id", requireUser, h.deleteContactByID)

	accounts := api.Group("/auth")
	accounts.POST("/signup", h.signup)
	accounts.POST("/login", h.login)
	accounts.GET("/refresh_token", h.refreshToken)
	accounts.GET("/confirmed_email/:token", h.confirmedEmail)
	accounts.POST("/request_email", h.requestEmail)

	profile := api.Group("/users_prof", requireUser)
	profile.GET("/me/", h.me)
	profile.PATCH("/avatar", h.updateAvatar)

	return router
}

// root is a liveness probe that does not touch the database.
//
//	> curl http://localhost:8080/
func (h *handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello World"})
}

// healthchecker verifies that the database answers a trivial query.
//
//	> curl http://localhost:8080/api/healthchecker
func (h *handler) healthchecker(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := repository.Ping(ctx, h.DB); err != nil {
		slog.Error("health check failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Error connecting to the database"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the contacts API!"})
}
