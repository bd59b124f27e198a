package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_EnqueueAssignsID(t *testing.T) {
	q := NewMemory(3)
	defer func() { _ = q.Close() }()

	id, err := q.Enqueue(context.Background(), Job{RequestID: 1, TenantID: 7, Title: "post"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, q.Pending())
}

func TestMemory_DrainDeliversAll(t *testing.T) {
	q := NewMemory(3)
	defer func() { _ = q.Close() }()

	for i := int64(1); i <= 5; i++ {
		_, err := q.Enqueue(context.Background(), Job{RequestID: i, TenantID: 7})
		require.NoError(t, err)
	}

	var got []int64
	err := q.Drain(context.Background(), func(_ context.Context, job Job) error {
		got = append(got, job.RequestID)
		return nil
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)
	assert.Equal(t, 0, q.Pending())
}

func TestMemory_RedeliversUntilBudget(t *testing.T) {
	q := NewMemory(3)
	defer func() { _ = q.Close() }()

	_, err := q.Enqueue(context.Background(), Job{ID: "j1", RequestID: 42, TenantID: 7})
	require.NoError(t, err)

	attempts := 0
	err = q.Drain(context.Background(), func(_ context.Context, job Job) error {
		attempts++
		return fmt.Errorf("handler failure %d", attempts)
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "j1", dead[0].ID)
	assert.Equal(t, int64(42), dead[0].RequestID)
}

func TestMemory_SucceedsOnRetry(t *testing.T) {
	q := NewMemory(3)
	defer func() { _ = q.Close() }()

	_, err := q.Enqueue(context.Background(), Job{RequestID: 9, TenantID: 7})
	require.NoError(t, err)

	attempts := 0
	err = q.Drain(context.Background(), func(_ context.Context, job Job) error {
		attempts++
		if attempts < 2 {
			return fmt.Errorf("transient")
		}
		return nil
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Empty(t, q.DeadLetters())
}

func TestMemory_EnqueueAfterClose(t *testing.T) {
	q := NewMemory(3)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close()) // idempotent

	_, err := q.Enqueue(context.Background(), Job{RequestID: 1})
	assert.Error(t, err)
}

func TestMemory_ConsumeStopsOnCancel(t *testing.T) {
	q := NewMemory(3)
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, func(context.Context, Job) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consume did not stop on cancel")
	}
}

func TestDeliveryAttemptHeaderParsing(t *testing.T) {
	// RabbitMQ may hand headers back as int32 or int64 depending on client.
	assert.Equal(t, 1, deliveryAttempt(amqpDeliveryWithHeader(nil)))
	assert.Equal(t, 2, deliveryAttempt(amqpDeliveryWithHeader(int32(2))))
	assert.Equal(t, 3, deliveryAttempt(amqpDeliveryWithHeader(int64(3))))
	assert.Equal(t, 1, deliveryAttempt(amqpDeliveryWithHeader("junk")))
}
