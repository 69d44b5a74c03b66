package main

import (
	"context"
	"time"
)

// ActionFlag is the kind of change recorded by an admin log entry.
type ActionFlag int

const (
	ActionAddition ActionFlag = 1
	ActionChange   ActionFlag = 2
	ActionDeletion ActionFlag = 3
)

func (f ActionFlag) String() string {
	switch f {
	case ActionAddition:
		return "Added"
	case ActionChange:
		return "Changed"
	case ActionDeletion:
		return "Deleted"
	}
	return "Unknown"
}

// LogEntry records one change made through the admin site.
type LogEntry struct {
	ID            string     `json:"id"`
	ActionTime    time.Time  `json:"action_time"`
	UserID        int64      `json:"user_id"`
	Username      string     `json:"username"`
	ContentType   string     `json:"content_type"`
	ObjectID      string     `json:"object_id"`
	ObjectRepr    string     `json:"object_repr"`
	ActionFlag    ActionFlag `json:"action_flag"`
	ChangeMessage string     `json:"change_message"`
}

// LogEntryStorage defines possible operations on admin log entries.
type LogEntryStorage interface {
	Add(ctx context.Context, entry LogEntry) error
	Recent(ctx context.Context, limit int) ([]LogEntry, error)
	ForObject(ctx context.Context, contentType, objectID string) ([]LogEntry, error)
	Close() error
}
