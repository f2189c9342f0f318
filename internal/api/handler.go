package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"production-output-backend/internal/dashboard"
	"production-output-backend/internal/errs"
	"production-output-backend/internal/ledger"
	"production-output-backend/internal/reading"
	"production-output-backend/internal/reference"
	"production-output-backend/internal/store"
)

// Deps are the components the handlers serve.
type Deps struct {
	Store     store.Store
	Ledger    *ledger.Ledger
	Reference *reference.Table
	Recorder  *reading.Recorder
	Dashboard *dashboard.Service
	Webpush   *webpush.Options
	Logger    *zap.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	ledger    *ledger.Ledger
	reference *reference.Table
	recorder  *reading.Recorder
	dashboard *dashboard.Service
	webpush   *webpush.Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:     d.Store,
		ledger:    d.Ledger,
		reference: d.Reference,
		recorder:  d.Recorder,
		dashboard: d.Dashboard,
		webpush:   d.Webpush,
		logger:    logger,
		now:       time.Now,
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidValue), errors.Is(err, errs.ErrInvalidTime):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrStorageFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// queryList collects a repeatable, comma-separable query parameter.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// filterFromQuery reads material, machine, size, from and to. Dates are
// "2006-01-02" in the ledger time zone.
func (h *Handler) filterFromQuery(c *gin.Context) (dashboard.Filter, error) {
	f := dashboard.Filter{
		Materials: queryList(c, "material"),
		Machines:  queryList(c, "machine"),
		Sizes:     queryList(c, "size"),
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		t, err := ledger.CombineDateTime(raw, "00:00", h.ledger.Location())
		if err != nil {
			return f, err
		}
		t = t.UTC()
		*dst = &t
	}
	return f, nil
}

// instantFromQuery reads an optional RFC 3339 "at" parameter, defaulting to now.
func (h *Handler) instantFromQuery(c *gin.Context) (time.Time, error) {
	raw := strings.TrimSpace(c.Query("at"))
	if raw == "" {
		return h.now(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid 'at' timestamp format, use RFC3339", errs.ErrInvalidTime)
	}
	return t, nil
}
