package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestBoltDBConsumer ensures queued entries reach the log storage, entries of
// unknown queues are dropped and a failing pop does not stop the consumer.
func TestBoltDBConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pops := []struct {
		qid string
		id  string
		err error
	}{
		{AdminLogQueue, "l:1", nil},
		{"unknown", "l:2", nil},
		{"", "", errors.New("connection refused")},
		{AdminLogQueue, "l:3", nil},
	}
	calls := 0
	queue := &MockQueuer{PopFunc: func(ctx context.Context, qids ...string) (string, LogEntry, error) {
		assert.Equal(t, []string{AdminLogQueue}, qids)
		if calls == len(pops) {
			cancel()
			<-ctx.Done()
			return "", LogEntry{}, ctx.Err()
		}
		p := pops[calls]
		calls++
		return p.qid, LogEntry{ID: p.id}, p.err
	}}
	var stored []string
	logs := &MockLogEntryStorage{AddFunc: func(_ context.Context, e LogEntry) error {
		stored = append(stored, e.ID)
		return nil
	}}

	consumer := &boltDBConsumer{logger: zap.NewNop(), queue: queue, repo: logs, backoff: time.Millisecond}
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(ctx, AdminLogQueue) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not exit after context cancellation")
	}
	assert.Equal(t, []string{"l:1", "l:3"}, stored)
}
