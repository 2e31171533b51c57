package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"tinyhouse/internal/infra/config"
	"tinyhouse/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
}

type ListingHTTP interface {
	Get(c *gin.Context)
	Search(c *gin.Context)
	Calendar(c *gin.Context)
}

type ViewerHTTP interface {
	ConnectWallet(c *gin.Context)
	DisconnectWallet(c *gin.Context)
}

type Handlers struct {
	Booking BookingHTTP
	Listing ListingHTTP
	Viewer  ViewerHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine; split from NewServer for tests.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", csrfHeader, "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", obs.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
	}
	if h.Listing != nil {
		api.GET("/listings", h.Listing.Search)
		api.GET("/listings/:id", h.Listing.Get)
		api.GET("/listings/:id/calendar", h.Listing.Calendar)
	}
	if h.Viewer != nil {
		api.POST("/viewer/wallet", h.Viewer.ConnectWallet)
		api.DELETE("/viewer/wallet", h.Viewer.DisconnectWallet)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
