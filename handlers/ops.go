package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/farmtrack/farmtrack/backend/go-services/pkg/metrics"
)

var startTime = time.Now()

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CORS is the permissive dev policy; it lets browsers send the identity header.
func CORS(identityHeader string) gin.HandlerFunc {
	allowed := "Origin, Content-Type, Accept, Authorization"
	if identityHeader != "" {
		allowed += ", " + identityHeader
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowed)
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// RegisterOps mounts /health and /ready. deps maps a dependency name to its
// pinger; a nil pinger is reported as not configured.
func RegisterOps(r *gin.Engine, deps map[string]Pinger) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		ready := true
		status := map[string]bool{}
		for name, p := range deps {
			if p == nil {
				continue
			}
			ok := p.Ping(ctx) == nil
			status[name] = ok
			ready = ready && ok
		}
		body := gin.H{"deps": status, "uptime": time.Since(startTime).String()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})
}

// ServeStatic serves files under dir for any unmatched GET. Unknown /api
// paths still get a JSON 404.
func ServeStatic(r *gin.Engine, dir string) {
	root, err := filepath.Abs(dir)
	if err != nil {
		root = dir
	}
	fs := http.Dir(root)
	fileServer := http.FileServer(fs)
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if f, err := fs.Open(c.Request.URL.Path); err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
		} else {
			_ = f.Close()
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	})
}

// countRequests records every API response by route and status class.
func countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.APIRequests.WithLabelValues(route, fmt.Sprintf("%dxx", c.Writer.Status()/100)).Inc()
	}
}
