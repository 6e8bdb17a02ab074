package handlers

import (
	"log/slog"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RouterDeps is everything the HTTP layer is wired to.
type RouterDeps struct {
	DB           *gorm.DB
	Tickets      TicketService
	Claims       ClaimService
	Partnerships PartnershipService
	Reports      ReportService
	Bulk         BulkService
	Limiter      middleware.Limiter
	Logger       *slog.Logger
	Health       map[string]HealthCheck

	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins []string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	if deps.Logger != nil {
		r.Use(middleware.RequestLogger(deps.Logger))
	}

	config := cors.DefaultConfig()
	config.AllowOrigins = deps.CORSOrigins
	if len(config.AllowOrigins) == 0 || config.AllowOrigins[0] == "*" {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	config.ExposeHeaders = []string{middleware.RequestIDHeader}
	r.Use(cors.New(config))

	r.GET("/healthz", Health(deps.Health))

	// Rate limiting runs after authentication so callers are keyed by
	// provider rather than by IP.
	var limit []gin.HandlerFunc
	if deps.Limiter != nil {
		limit = append(limit, middleware.RateLimit(deps.Limiter))
	}

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth", limit...)
		{
			auth.POST("/login", Login(deps.DB, deps.JWTSecret, deps.JWTTTL))
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(deps.JWTSecret))
		protected.Use(limit...)
		writer := middleware.RequireWriter()
		{
			users := protected.Group("/users")
			{
				users.POST("", CreateUser(deps.DB))
				users.GET("/profile", GetProfile(deps.DB))
				users.PUT("/profile", UpdateProfile(deps.DB))
				users.PUT("/password", ChangePassword(deps.DB))
			}

			tickets := protected.Group("/trip_tickets")
			{
				tickets.GET("", ListTickets(deps.Tickets))
				tickets.GET("/sync", SyncTickets(deps.Tickets))
				tickets.POST("", writer, CreateTicket(deps.Tickets))
				tickets.GET("/:id", GetTicket(deps.Tickets))
				tickets.PUT("/:id", writer, UpdateTicket(deps.Tickets))
				tickets.PUT("/:id/rescind", writer, RescindTicket(deps.Tickets))
				tickets.GET("/:id/trip_claims", ListClaims(deps.Claims))
				tickets.POST("/:id/trip_claims", writer, CreateClaim(deps.Claims))
			}

			claims := protected.Group("/trip_claims")
			{
				claims.GET("/:id", GetClaim(deps.Claims))
				claims.PUT("/:id", writer, UpdateClaim(deps.Claims))
				claims.POST("/:id/approve", writer, ApproveClaim(deps.Claims))
				claims.POST("/:id/decline", writer, DeclineClaim(deps.Claims))
				claims.POST("/:id/rescind", writer, RescindClaim(deps.Claims))
			}

			partnerships := protected.Group("/partnerships")
			{
				partnerships.GET("", ListPartnerships(deps.Partnerships))
				partnerships.POST("", writer, RequestPartnership(deps.Partnerships))
				partnerships.POST("/:id/approve", writer, ApprovePartnership(deps.Partnerships))
				partnerships.PUT("/:id/auto_approve", writer, SetAutoApprove(deps.Partnerships))
			}

			reports := protected.Group("/reports")
			{
				reports.GET("/provider_summary", ProviderSummaryReport(deps.Reports))
			}

			bulk := protected.Group("/bulk_operations")
			{
				bulk.GET("", ListBulkOperations(deps.Bulk))
				bulk.POST("/export", ExportTickets(deps.Bulk))
				bulk.POST("/import", writer, ImportTickets(deps.Bulk))
				bulk.GET("/:id/download", DownloadBulkFile(deps.Bulk))
			}
		}
	}

	return r
}
