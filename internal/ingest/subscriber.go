// Package ingest feeds size changes and readings published by line terminals
// over MQTT into the ledger and the reading recorder.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"production-output-backend/internal/ledger"
	"production-output-backend/internal/model"
	"production-output-backend/internal/reading"
)

const (
	TopicRun     = "production/+/run"
	TopicReading = "production/+/reading"
	QoS          = 1

	handleTimeout = 10 * time.Second
)

// RunStarter is the ledger write path.
type RunStarter interface {
	StartRun(ctx context.Context, req ledger.StartRunRequest) (model.RunSession, error)
}

// ReadingSubmitter is the reading write path.
type ReadingSubmitter interface {
	Submit(ctx context.Context, in reading.Input) (model.OutputReading, error)
}

// Purger drops cached API responses.
type Purger interface {
	Purge(ctx context.Context) error
}

// Subscriber routes terminal messages to the ledger and recorder.
type Subscriber struct {
	runs     RunStarter
	readings ReadingSubmitter
	cache    Purger
	logger   *zap.Logger
}

func NewSubscriber(runs RunStarter, readings ReadingSubmitter, logger *zap.Logger) *Subscriber {
	return &Subscriber{runs: runs, readings: readings, logger: logger}
}

// SetCache makes every accepted message purge the API response cache.
func (s *Subscriber) SetCache(p Purger) { s.cache = p }

// TopicToMachine splits "production/{machine}/{kind}".
func TopicToMachine(topic string) (machineID, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "production" || parts[1] == "" {
		return "", "", false
	}
	switch parts[2] {
	case "run", "reading":
		return parts[1], parts[2], true
	}
	return "", "", false
}

// Subscribe registers the handler for both topics.
func (s *Subscriber) Subscribe(client mqtt.Client) error {
	filters := map[string]byte{TopicRun: QoS, TopicReading: QoS}
	token := client.SubscribeMultiple(filters, func(c mqtt.Client, msg mqtt.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := s.handleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn("dropping terminal message", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s, %s: %w", TopicRun, TopicReading, token.Error())
	}
	s.logger.Info("subscribed to terminal topics", zap.String("run", TopicRun), zap.String("reading", TopicReading), zap.Int("qos", QoS))
	return nil
}

func (s *Subscriber) handleMessage(ctx context.Context, topic string, payload []byte) error {
	machineID, kind, ok := TopicToMachine(topic)
	if !ok {
		return fmt.Errorf("invalid topic %q", topic)
	}

	switch kind {
	case "run":
		var req ledger.StartRunRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("invalid run payload: %w", err)
		}
		req.MachineID = machineID
		run, err := s.runs.StartRun(ctx, req)
		if err != nil {
			return err
		}
		s.logger.Debug("run started from terminal", zap.String("machine", machineID), zap.Int64("run_id", run.ID))
	case "reading":
		var in reading.Input
		if err := json.Unmarshal(payload, &in); err != nil {
			return fmt.Errorf("invalid reading payload: %w", err)
		}
		in.MachineID = machineID
		rec, err := s.readings.Submit(ctx, in)
		if err != nil {
			return err
		}
		s.logger.Debug("reading stored from terminal", zap.String("machine", machineID), zap.Int64("reading_id", rec.ID))
	}

	if s.cache != nil {
		if err := s.cache.Purge(ctx); err != nil {
			s.logger.Warn("failed to purge response cache", zap.Error(err))
		}
	}
	return nil
}
