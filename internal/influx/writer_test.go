package influx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"production-output-backend/internal/model"
)

type capture struct {
	points []*write.Point
	err    error
}

func (c *capture) WritePoint(ctx context.Context, point ...*write.Point) error {
	c.points = append(c.points, point...)
	return c.err
}

func fields(p *write.Point) map[string]any {
	out := make(map[string]any)
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestPoint(t *testing.T) {
	at := time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
	expected := 75.0
	r := model.OutputReading{
		ID: 12, SubmittedAt: at, MachineID: "MC 2", Material: "PPR", SizePN: "20MM PN 16",
		ExpectedOutput: &expected, ActualOutput: 69, DeviationPct: -8, ShiftHours: 8,
	}

	p := Point(r)
	assert.Equal(t, "output_reading", p.Name())
	assert.True(t, p.Time().Equal(at))
	assert.Equal(t, map[string]string{"machineId": "MC 2", "material": "PPR", "sizePn": "20MM PN 16"}, tags(p))

	f := fields(p)
	assert.Equal(t, int64(12), f["readingId"])
	assert.Equal(t, 69.0, f["actual"])
	assert.Equal(t, -8.0, f["deviationPct"])
	assert.Equal(t, 75.0, f["expected"])

	r.ExpectedOutput = nil
	assert.NotContains(t, fields(Point(r)), "expected")
}

func TestWriter_WriteReading(t *testing.T) {
	c := &capture{}
	w := &Writer{api: c}

	require.NoError(t, w.WriteReading(context.Background(), model.OutputReading{ID: 1, MachineID: "MC 5"}))
	require.Len(t, c.points, 1)
	assert.Equal(t, "MC 5", tags(c.points[0])["machineId"])

	c.err = errors.New("unauthorized")
	err := w.WriteReading(context.Background(), model.OutputReading{ID: 2})
	assert.ErrorContains(t, err, "influx write")

	w.Close()
}
