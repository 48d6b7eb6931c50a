package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sipwell/storefront-backend/pkg/config"
	"github.com/sipwell/storefront-backend/pkg/db/models"
	"github.com/sipwell/storefront-backend/pkg/enums"
	"github.com/sipwell/storefront-backend/pkg/logger"
)

type fakeRepo struct {
	pending   []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) FetchPending(limit int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	errs     []error
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	return fakeResult{err: err}
}

func pendingEvent(t *testing.T) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"orderId": uuid.New().String()})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		Status:        enums.OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func newTestPublisher(t *testing.T, repo *fakeRepo, pub *fakePublisher) *Publisher {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 10
	cfg.Outbox.PollIntervalMS = 50

	svc, err := NewPublisher(PublisherParams{
		Config:    cfg,
		Logger:    logger.New(logger.Options{ServiceName: "outbox-publisher-test"}),
		Repo:      repo,
		Publisher: pub,
	})
	require.NoError(t, err)
	return svc
}

func TestNewPublisherRequiresDependencies(t *testing.T) {
	_, err := NewPublisher(PublisherParams{})
	require.Error(t, err)

	_, err = NewPublisher(PublisherParams{
		Config: &config.Config{},
		Logger: logger.New(logger.Options{ServiceName: "t"}),
		Repo:   &fakeRepo{},
	})
	require.ErrorContains(t, err, "publisher is required")
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	first := pendingEvent(t)
	second := pendingEvent(t)
	repo := &fakeRepo{pending: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{}

	svc := newTestPublisher(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	require.Len(t, pub.messages, 2)
	require.Equal(t, []uuid.UUID{first.ID, second.ID}, repo.published)
	require.Empty(t, repo.failed)

	msg := pub.messages[0]
	require.Equal(t, json.RawMessage(first.Payload), json.RawMessage(msg.Data))
	require.Equal(t, string(enums.EventOrderCreated), msg.Attributes["event_type"])
	require.Equal(t, first.AggregateID.String(), msg.Attributes["aggregate_id"])
}

func TestProcessBatchMarksFailureAndContinues(t *testing.T) {
	first := pendingEvent(t)
	second := pendingEvent(t)
	repo := &fakeRepo{pending: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{errs: []error{errors.New("broker unavailable")}}

	svc := newTestPublisher(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	require.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{second.ID}, repo.published)
}

func TestProcessBatchIdleWhenEmpty(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}

	svc := newTestPublisher(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
	require.Empty(t, pub.messages)
}

func TestProcessBatchPropagatesFetchError(t *testing.T) {
	repo := &fakeRepo{fetchErr: errors.New("connection reset")}
	svc := newTestPublisher(t, repo, &fakePublisher{})

	_, err := svc.processBatch(context.Background())
	require.ErrorContains(t, err, "fetch pending")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestPublisher(t, repo, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}
