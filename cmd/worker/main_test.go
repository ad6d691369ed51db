package main

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verionlabs/directory-billing/internal/domain/task"
	"github.com/verionlabs/directory-billing/internal/infrastructure/observability"
	"github.com/verionlabs/directory-billing/internal/testutil"
)

type stubPublisher struct {
	fail      bool
	published []string
}

func (p *stubPublisher) Publish(ctx context.Context, taskID, subscriptionID string, attempt int) error {
	if p.fail {
		return errors.New("stream unavailable")
	}
	p.published = append(p.published, taskID)
	return nil
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics("test", prometheus.NewRegistry())
}

func TestDispatchDue_MarksPublishedRows(t *testing.T) {
	ctx := context.Background()
	tasks := testutil.NewMockTaskRepository()
	producer := &stubPublisher{}

	entry := task.New(uuid.New(), 0)
	require.NoError(t, tasks.Insert(ctx, entry))

	err := dispatchDue(ctx, zerolog.Nop(), newTestMetrics(), &testutil.MockTxManager{}, tasks, producer, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{entry.ID.String()}, producer.published)
	assert.Equal(t, task.StatusPublished, entry.Status)
	require.NotNil(t, entry.PublishedAt)
}

func TestDispatchDue_MarkFailureAbortsBatch(t *testing.T) {
	ctx := context.Background()
	tasks := testutil.NewMockTaskRepository()
	producer := &stubPublisher{}

	entry := task.New(uuid.New(), 0)
	require.NoError(t, tasks.Insert(ctx, entry))

	markErr := errors.New("connection reset")
	tasks.MarkPublishedFunc = func(ctx context.Context, id uuid.UUID) error {
		return markErr
	}

	err := dispatchDue(ctx, zerolog.Nop(), newTestMetrics(), &testutil.MockTxManager{}, tasks, producer, 10)
	assert.ErrorIs(t, err, markErr)
}

func TestDispatchDue_PublishFailureBumpsPublishTries(t *testing.T) {
	ctx := context.Background()
	tasks := testutil.NewMockTaskRepository()
	producer := &stubPublisher{fail: true}

	entry := task.New(uuid.New(), 0)
	require.NoError(t, tasks.Insert(ctx, entry))

	err := dispatchDue(ctx, zerolog.Nop(), newTestMetrics(), &testutil.MockTxManager{}, tasks, producer, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, entry.PublishTries)
	assert.Equal(t, task.StatusPending, entry.Status)
}

func TestDispatchDue_PublishFailedMarkErrorPropagates(t *testing.T) {
	ctx := context.Background()
	tasks := testutil.NewMockTaskRepository()
	producer := &stubPublisher{fail: true}

	entry := task.New(uuid.New(), 0)
	require.NoError(t, tasks.Insert(ctx, entry))

	markErr := errors.New("connection reset")
	tasks.MarkPublishFailedFunc = func(ctx context.Context, id uuid.UUID) error {
		return markErr
	}

	err := dispatchDue(ctx, zerolog.Nop(), newTestMetrics(), &testutil.MockTxManager{}, tasks, producer, 10)
	assert.ErrorIs(t, err, markErr)
}
