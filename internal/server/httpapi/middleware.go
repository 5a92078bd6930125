package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/dmitrijs2005/vidauth/internal/logging"
	"github.com/dmitrijs2005/vidauth/internal/server/guard"
	"github.com/dmitrijs2005/vidauth/internal/server/metrics"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userKey         = "user"
)

// requestID propagates the caller's X-Request-ID or assigns a new ULID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = ulid.Make().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger logging.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), elapsed)

		args := []any{
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", elapsed,
		}
		if len(c.Errors) > 0 && status >= 500 {
			logger.Error(c.Request.Context(), "request failed", append(args, "error", c.Errors.Last().Error())...)
			return
		}
		logger.Info(c.Request.Context(), "request", args...)
	}
}

// requireUser rejects requests without a valid access token and stores the
// identity on both the gin and the request context.
func requireUser(g *guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := g.Authenticate(c.Request.Context(), guard.TokenFromRequest(c.Request))
		if err != nil {
			fail(c, err)
			return
		}
		c.Set(userKey, u)
		c.Request = c.Request.WithContext(guard.WithUser(c.Request.Context(), u))
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.PublicUser {
	u, _ := guard.UserFromContext(c.Request.Context())
	return u
}
