// Package influx forwards stored readings to InfluxDB.
package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"production-output-backend/internal/model"
)

const measurement = "output_reading"

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Writer writes readings to InfluxDB.
type Writer struct {
	client influxdb2.Client
	api    pointWriter
}

// NewWriter creates an InfluxDB write API client. Caller should call Close() when done.
func NewWriter(url, token, org, bucket string) *Writer {
	client := influxdb2.NewClient(url, token)
	return &Writer{client: client, api: client.WriteAPIBlocking(org, bucket)}
}

// Close releases the InfluxDB client.
func (w *Writer) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// Health checks that InfluxDB is reachable and the token is valid.
func (w *Writer) Health(ctx context.Context) error {
	_, err := w.client.Health(ctx)
	return err
}

// WriteReading saves one reading as a point at its submission time.
func (w *Writer) WriteReading(ctx context.Context, r model.OutputReading) error {
	if err := w.api.WritePoint(ctx, Point(r)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Point maps a reading to the output_reading measurement. The expected field is
// omitted when the reading has no expectation.
func Point(r model.OutputReading) *write.Point {
	p := influxdb2.NewPointWithMeasurement(measurement).
		AddTag("machineId", r.MachineID).
		AddTag("material", r.Material).
		AddTag("sizePn", r.SizePN).
		AddField("readingId", r.ID).
		AddField("actual", r.ActualOutput).
		AddField("deviationPct", r.DeviationPct).
		AddField("shiftHours", r.ShiftHours).
		SetTime(r.SubmittedAt)
	if r.ExpectedOutput != nil {
		p.AddField("expected", *r.ExpectedOutput)
	}
	return p
}
