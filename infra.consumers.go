package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

type boltDBConsumer struct {
	logger *zap.Logger
	queue  Queuer
	repo   LogEntryStorage
	// pause after a failed pop so a down redis does not spin the loop.
	backoff time.Duration
}

func NewBoltDBConsumer(logger *zap.Logger, q Queuer, repo LogEntryStorage) Consumer {
	return &boltDBConsumer{logger, q, repo, time.Second}
}

// Consume moves queued admin log entries into the log storage until ctx is done.
func (bc *boltDBConsumer) Consume(ctx context.Context, qids ...string) error {
	var entry LogEntry
	var err error
	var qid string
	for {
		qid, entry, err = bc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			bc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			bc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(bc.backoff):
			}
			continue
		}

		switch qid {
		case AdminLogQueue:
			if err = bc.repo.Add(ctx, entry); err != nil {
				bc.logger.Error("consumer: failed to store log entry", zap.Any("entry", entry), zap.Error(err))
			}
		default:
			bc.logger.Warn("consumer: received entry on unknown queue id", zap.String("qid", qid), zap.Any("entry", entry))
		}
	}
}
