// Package httpapi is the gin transport for the /users routes, health and
// metrics endpoints and the local static asset directory.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/vidauth/internal/logging"
	"github.com/dmitrijs2005/vidauth/internal/server/guard"
	"github.com/dmitrijs2005/vidauth/internal/server/metrics"
)

// Options configures the transport. Zero TTLs produce session cookies.
type Options struct {
	CORSOrigin    string
	CookieSecure  bool
	UploadDir     string
	MaxUploadSize int64
	PublicDir     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Pinger reports whether the credential store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Sessions Sessions
	Guard    *guard.Guard
	Store    Pinger
	Logger   logging.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// NewRouter builds the engine. The caller sets the gin mode beforehand.
func NewRouter(d Deps, opts Options) *gin.Engine {
	logger := d.Logger.With("module", "http")
	h := &handler{sessions: d.Sessions, opts: opts}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), tracing(), accessLog(logger, d.Metrics))
	router.Use(cors.New(corsConfig(opts.CORSOrigin)))
	router.MaxMultipartMemory = 8 << 20

	router.GET("/health", healthHandler(d.Store))
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if opts.PublicDir != "" {
		router.Static("/static", opts.PublicDir)
	}

	users := router.Group("/users")
	{
		users.POST("/register", h.register)
		users.POST("/login", h.login)
		users.POST("/refresh-token", h.refresh)
	}

	secured := users.Group("")
	secured.Use(requireUser(d.Guard))
	{
		secured.POST("/logout", h.logout)
		secured.POST("/change-password", h.changePassword)
		secured.GET("/current-user", h.current)
		secured.PATCH("/update-details", h.updateDetails)
		secured.PATCH("/update-avatar", h.updateAvatar)
		secured.PATCH("/update-cover", h.updateCover)
	}

	return router
}

// corsConfig allows credentials for the comma-separated origins; "*" or an
// empty value allows any origin.
func corsConfig(origins string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowCredentials = true
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader}
	cfg.ExposeHeaders = []string{requestIDHeader}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}

	var list []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			list = append(list, o)
		}
	}
	if len(list) == 0 || (len(list) == 1 && list[0] == "*") {
		cfg.AllowOriginFunc = func(string) bool { return true }
		return cfg
	}
	cfg.AllowOrigins = list
	return cfg
}

func healthHandler(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if store != nil {
			if err := store.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "vidauth"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "vidauth"})
	}
}
