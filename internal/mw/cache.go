package mw

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type cachedResponse struct {
	Status  int         `json:"status"`
	Headers http.Header `json:"headers"`
	Body    []byte      `json:"body"`
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache is a middleware caching successful GET responses. A successful
// request with any other method purges the store.
func Cache(store ResponseStore, duration time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if c.Request.Method != http.MethodGet {
			c.Next()
			if s := c.Writer.Status(); s >= 200 && s < 300 {
				if err := store.Purge(ctx); err != nil {
					logger.Warn("failed to purge response cache", zap.Error(err))
				}
			}
			return
		}

		key := c.Request.RequestURI
		if raw, err := store.Get(ctx, key); err == nil {
			var cached cachedResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				for k, v := range cached.Headers {
					c.Writer.Header()[k] = v
				}
				c.Writer.WriteHeader(cached.Status)
				c.Writer.Write(cached.Body)
				c.Abort()
				return
			}
			logger.Warn("discarding undecodable cache entry", zap.String("key", key))
		} else if err != ErrMiss {
			logger.Warn("response cache unavailable", zap.Error(err))
		}

		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses
		if blw.Status() >= 200 && blw.Status() < 300 {
			raw, err := json.Marshal(cachedResponse{
				Status:  blw.Status(),
				Headers: blw.Header().Clone(),
				Body:    blw.body.Bytes(),
			})
			if err != nil {
				return
			}
			if err := store.Set(ctx, key, raw, duration); err != nil {
				logger.Warn("failed to store cached response", zap.String("key", key), zap.Error(err))
			}
		}
	}
}
