package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"production-output-backend/internal/errs"
	"production-output-backend/internal/export"
	"production-output-backend/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxImportBytes caps an uploaded workbook, multipart or raw.
var maxImportBytes int64 = 16 << 20

func sendWorkbook(c *gin.Context, name string, body *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, body.Bytes())
}

// ExportReadings handles GET /api/export/readings.xlsx with the dashboard filter.
func (h *Handler) ExportReadings(c *gin.Context) {
	f, err := h.filterFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.dashboard.Readings(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}

	readings := make([]model.OutputReading, len(rows))
	for i, r := range rows {
		readings[i] = r.OutputReading
	}

	var buf bytes.Buffer
	if err := export.WriteReadings(&buf, readings, h.ledger.Location()); err != nil {
		h.fail(c, err)
		return
	}
	sendWorkbook(c, "readings.xlsx", &buf)
}

// ExportRuns handles GET /api/export/runs.xlsx.
func (h *Handler) ExportRuns(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.WriteRuns(&buf, h.ledger.HistoryAll()); err != nil {
		h.fail(c, err)
		return
	}
	sendWorkbook(c, "runs.xlsx", &buf)
}

// ImportRuns handles POST /api/import/runs. The workbook is taken from the
// multipart "file" field, or from the raw body otherwise.
func (h *Handler) ImportRuns(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	var src io.Reader
	fh, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("workbook exceeds %d bytes", maxImportBytes)})
		return
	}
	if err == nil {
		file, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()
		src = file
	} else {
		src = c.Request.Body
	}

	runs, skipped, err := export.ReadRuns(src)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(runs) == 0 {
		h.fail(c, fmt.Errorf("%w: workbook holds no closed runs", errs.ErrInvalidValue))
		return
	}

	imported, err := h.ledger.Import(c.Request.Context(), runs)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("imported run history", zap.Int("imported", len(imported)), zap.Int("skipped", skipped))
	c.JSON(http.StatusCreated, gin.H{"imported": len(imported), "skipped": skipped})
}
