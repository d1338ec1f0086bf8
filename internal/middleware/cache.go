package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"school-attendance-api/internal/cache"

	"github.com/gin-gonic/gin"
)

// CacheKeyFunc derives the cache key for a request. Routes whose entries must
// be addressable by the invalidation path supply one built from the shared
// builders in the cache package.
type CacheKeyFunc func(c *gin.Context) string

// CacheConfig controls the read-through middleware for one route.
type CacheConfig struct {
	// TTL for entries stored by this route. <= 0 falls back to the store
	// default.
	TTL time.Duration

	// KeyFunc overrides the default "METHOD:requestURI" key.
	KeyFunc CacheKeyFunc

	// SetCacheControl advertises a public max-age matching TTL on the
	// response, for aggregate views that downstream proxies may also cache.
	SetCacheControl bool
}

// CacheHeader carries the cache status ("HIT" or "MISS") on every response
// that went through the read-through middleware.
const CacheHeader = "X-Cache"

const (
	cacheHit  = "HIT"
	cacheMiss = "MISS"
)

// bodyCaptureWriter tees the response body so a successful JSON payload can be
// snapshotted into the cache after the handler ran.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CachePage wraps a GET route with read-through caching. On hit the stored
// body is served verbatim and the handler is skipped; on miss the handler
// runs and its body is stored only when it responded 200. Caching is a pure
// side effect: it never alters the response the client receives, and cache
// failures never fail the request.
func CachePage(store cache.Store, cfg CacheConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Caching never applies to mutations.
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.Method + ":" + c.Request.URL.RequestURI()
		if cfg.KeyFunc != nil {
			key = cfg.KeyFunc(c)
		}

		if cfg.SetCacheControl && cfg.TTL > 0 {
			c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cfg.TTL.Seconds())))
		}

		if body, ok := store.Get(key); ok {
			c.Header(CacheHeader, cacheHit)
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			c.Abort()
			return
		}

		c.Header(CacheHeader, cacheMiss)
		w := &bodyCaptureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()
		c.Writer = w.ResponseWriter

		if w.Status() == http.StatusOK && w.buf.Len() > 0 {
			store.Set(key, json.RawMessage(w.buf.Bytes()), cfg.TTL)
		}
	}
}
