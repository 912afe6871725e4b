package http

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lumenlabs/identity-service/internal/config"
	"github.com/lumenlabs/identity-service/internal/domain/models"
	"github.com/lumenlabs/identity-service/internal/handler/http/middleware"
	"github.com/lumenlabs/identity-service/internal/service"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SetupRouter builds the HTTP routing tree.
func SetupRouter(
	userService *service.UserService,
	oauthService *service.OAuthService,
	tokenService service.TokenIssuer,
	cfg *config.Config,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	registerValidators()

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CorsMiddleware(cfg.Server.AllowedOrigins))

	authHandler := NewAuthHandler(userService, tokenService, logger)
	meHandler := NewMeHandler(userService, logger)
	oauthHandler := NewOAuthHandler(oauthService, tokenService, logger)
	adminHandler := NewAdminHandler(userService, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/readiness", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/users/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)

		oauth := api.Group("/oauth")
		{
			oauth.POST("/login", oauthHandler.Login)
			oauth.GET("/callback", oauthHandler.Callback)
			oauth.POST("/callback", oauthHandler.Callback)
			oauth.GET("/providers", oauthHandler.Providers)

			protected := oauth.Group("/")
			protected.Use(middleware.AuthMiddleware(tokenService, logger))
			{
				protected.POST("/link", oauthHandler.Link)
				protected.POST("/link/callback", oauthHandler.LinkCallback)
				protected.DELETE("/unlink/:provider", oauthHandler.Unlink)
				protected.GET("/accounts", oauthHandler.Accounts)
				protected.GET("/user/complete", oauthHandler.UserComplete)
			}
		}

		me := api.Group("/users/me")
		me.Use(middleware.AuthMiddleware(tokenService, logger))
		{
			me.GET("", meHandler.Get)
			me.PUT("", meHandler.Update)
			me.PUT("/password", meHandler.ChangePassword)
		}

		admin := api.Group("/admin/users")
		admin.Use(middleware.AuthMiddleware(tokenService, logger))
		admin.Use(middleware.RequireRole(userService, models.RoleAdmin, logger))
		{
			admin.GET("", adminHandler.List)
			admin.GET("/:user_id", adminHandler.GetByID)
			admin.PUT("/:user_id", adminHandler.Update)
			admin.DELETE("/:user_id", adminHandler.Delete)
		}
	}

	return router
}

// registerValidators installs the custom binding validators. Registration is
// idempotent; gin keeps one validator engine per process.
func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("alphanum_underscore", func(fl validator.FieldLevel) bool {
			return usernameRe.MatchString(fl.Field().String())
		})
	}
}
