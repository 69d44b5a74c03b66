package main

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// logEntryKeyLayout keeps bolt keys sorted by action time.
const logEntryKeyLayout = "20060102T150405.000000000"

type boltLogEntryStorage struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
}

// GetBoltDBClient setup the database and the bucket then provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, errB := tx.CreateBucketIfNotExists([]byte(config.BoltDB.BucketName)); errB != nil {
			return fmt.Errorf("failed to create %s bucket: %v", config.BoltDB.BucketName, errB)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// NewBoltLogEntryStorage provides an instance of bolt-based admin log storage.
func NewBoltLogEntryStorage(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) LogEntryStorage {
	return &boltLogEntryStorage{
		logger: logger,
		client: client,
		config: boltConfig,
	}
}

// Close shuts down the bolt-based log storage.
func (bs *boltLogEntryStorage) Close() error {
	return bs.client.Close()
}

func logEntryKey(entry LogEntry) []byte {
	return []byte(entry.ActionTime.UTC().Format(logEntryKeyLayout) + "|" + entry.ID)
}

// Add inserts a log entry. Entries with same key are replaced so
// redelivered entries are stored once.
func (bs *boltLogEntryStorage) Add(_ context.Context, entry LogEntry) error {
	entryBytes, err := jsonCodec.Marshal(entry)
	if err != nil {
		return err
	}
	return bs.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bs.config.BucketName)).Put(logEntryKey(entry), entryBytes)
	})
}

// Recent retrieves the latest entries, most recent first.
func (bs *boltLogEntryStorage) Recent(_ context.Context, limit int) ([]LogEntry, error) {
	tx, err := bs.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c := tx.Bucket([]byte(bs.config.BucketName)).Cursor()
	entries := []LogEntry{}
	for k, v := c.Last(); k != nil && (limit <= 0 || len(entries) < limit); k, v = c.Prev() {
		var entry LogEntry
		if err = jsonCodec.Unmarshal(v, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ForObject retrieves the history of one object, oldest first.
func (bs *boltLogEntryStorage) ForObject(_ context.Context, contentType, objectID string) ([]LogEntry, error) {
	tx, err := bs.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c := tx.Bucket([]byte(bs.config.BucketName)).Cursor()
	entries := []LogEntry{}
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var entry LogEntry
		if err = jsonCodec.Unmarshal(v, &entry); err != nil {
			return nil, err
		}
		if entry.ContentType == contentType && entry.ObjectID == objectID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
