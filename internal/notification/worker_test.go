package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"production-output-backend/internal/db"
	"production-output-backend/internal/model"
	"production-output-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

func seedReading(t *testing.T, s *store.GormStore, machineID string) model.OutputReading {
	t.Helper()
	expected := 100.0
	r := model.OutputReading{
		SubmittedAt:    time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC),
		Date:           time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		MachineID:      machineID,
		Material:       "PPR",
		SizePN:         "20MM PN 16",
		ExpectedOutput: &expected,
		ActualOutput:   120,
		DeviationPct:   20,
		SubmittedBy:    "ana",
	}
	require.NoError(t, s.CreateReading(context.Background(), &r))
	return r
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, nil, &webpush.Options{}, zap.NewNop())

	// Dispatch a job
	wp.Dispatch(123)

	// Check if the job is in the channel
	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(123), job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchDoesNotBlockWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, nil, &webpush.Options{}, zap.NewNop())
	for i := 0; i < cap(wp.jobs)+5; i++ {
		wp.Dispatch(int64(i))
	}
	assert.Len(t, wp.jobs, cap(wp.jobs))
}

func TestMessage(t *testing.T) {
	expected := 100.0
	r := model.OutputReading{MachineID: "MC 2", Material: "PPR", SizePN: "20MM PN 16", ExpectedOutput: &expected, ActualOutput: 85, DeviationPct: -15}
	assert.Equal(t, "MC 2 PPR 20MM PN 16: output 85.00 vs expected 100.00 (-15.00%)", Message(r))

	r.ExpectedOutput = nil
	r.DeviationPct = 0
	assert.Equal(t, "MC 2 PPR 20MM PN 16: output 85.00 vs expected n/a (+0.00%)", Message(r))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("sends alert to subscribers of the machine", func(t *testing.T) {
		reading := seedReading(t, s, "MC 2")
		seedReading(t, s, "MC 5")
		require.NoError(t, s.PutSubscription(ctx, &model.PushSubscription{Endpoint: "https://example.com/push", P256DH: "p", Auth: "a"}, []string{"MC 2"}))
		require.NoError(t, s.PutSubscription(ctx, &model.PushSubscription{Endpoint: "https://example.com/other", P256DH: "p", Auth: "a"}, []string{"MC 5"}))

		var mu sync.Mutex
		var endpoints []string
		var wg sync.WaitGroup
		wg.Add(1)

		wp := NewWorkerPool(1, s, &webpush.Options{}, zap.NewNop())
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				mu.Lock()
				endpoints = append(endpoints, sub.Endpoint)
				mu.Unlock()
				assert.Equal(t, "MC 2 PPR 20MM PN 16: output 120.00 vs expected 100.00 (+20.00%)", string(payload))
				wg.Done()
				return okResponse(http.StatusCreated), nil
			},
		}

		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		wp.Start(wctx)

		wp.Dispatch(reading.ID)
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"https://example.com/push"}, endpoints)
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		reading := seedReading(t, s, "MC 9")
		require.NoError(t, s.PutSubscription(ctx, &model.PushSubscription{Endpoint: "https://example.com/expired", P256DH: "p", Auth: "a"}, []string{"MC 9"}))

		wp := NewWorkerPool(1, s, &webpush.Options{}, zap.NewNop())
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return okResponse(http.StatusGone), nil
			},
		}

		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		wp.Start(wctx)
		wp.Dispatch(reading.ID)

		assert.Eventually(t, func() bool {
			subs, err := s.SubscriptionsForMachine(ctx, "MC 9")
			return err == nil && len(subs) == 0
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("missing reading sends nothing", func(t *testing.T) {
		wp := NewWorkerPool(1, s, &webpush.Options{}, zap.NewNop())
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("unexpected send")
				return okResponse(http.StatusCreated), nil
			},
		}
		wp.sendAlertsForReading(ctx, 9999)
	})
}
