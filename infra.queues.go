package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AdminLogQueue is the queue id of pending admin log entries.
const AdminLogQueue = "admin.logentries"

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// Queuer describes a queue of admin log entries.
type Queuer interface {
	Push(ctx context.Context, qid string, entry LogEntry) error
	Pop(ctx context.Context, qids ...string) (string, LogEntry, error)
}

// redisQueue represents a queue which implements the Queuer interface.
type redisQueue struct {
	client *redis.Client
	prefix string
}

func NewRedisQueue(client *redis.Client, prefix string) Queuer {
	return &redisQueue{client: client, prefix: prefix}
}

func (q *redisQueue) name(qid string) string {
	if q.prefix == "" {
		return qid
	}
	return q.prefix + ":" + qid
}

// Push enqueues an entry onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, entry LogEntry) error {
	entryBytes, err := jsonCodec.Marshal(entry)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.name(qid), entryBytes).Err()
}

// Pop blocks until an entry is available on one of the queue ids and
// returns it with the id of its queue.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, LogEntry, error) {
	var entry LogEntry
	names := make([]string, 0, len(qids))
	byName := make(map[string]string, len(qids))
	for _, qid := range qids {
		names = append(names, q.name(qid))
		byName[q.name(qid)] = qid
	}
	infos, err := q.client.BLPop(ctx, 0*time.Second, names...).Result()
	if err != nil {
		return "", entry, err
	}

	if err = jsonCodec.Unmarshal([]byte(infos[1]), &entry); err != nil {
		return byName[infos[0]], entry, err
	}
	return byName[infos[0]], entry, nil
}
