package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestBoltStore returns a log entry store backed by a temporary file.
func newTestBoltStore() (*boltLogEntryStorage, error) {
	f, err := os.CreateTemp("", "tmp.bolt.db-")
	if err != nil {
		return nil, err
	}
	f.Close()
	testConfig := &Config{
		BoltDB: BoltDBConfig{
			FilePath:   f.Name(),
			Timeout:    5 * time.Second,
			BucketName: "test.logentries",
		},
	}

	client, err := GetBoltDBClient(testConfig)

	return &boltLogEntryStorage{
		logger: zap.NewNop(),
		client: client,
		config: &testConfig.BoltDB,
	}, err
}

// closeTestBoltStore closes the temporary bolt store and removes the underlying data file.
func (bs *boltLogEntryStorage) closeTestBoltStore() error {
	defer os.Remove(bs.config.FilePath)
	return bs.Close()
}

func testLogEntry(id string, at time.Time, objectID string, flag ActionFlag) LogEntry {
	return LogEntry{
		ID:          id,
		ActionTime:  at,
		UserID:      1,
		Username:    "admin",
		ContentType: "catalog.genre",
		ObjectID:    objectID,
		ObjectRepr:  "Fantasy",
		ActionFlag:  flag,
	}
}

func TestBoltStore_Recent(t *testing.T) {
	bs, err := newTestBoltStore()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltStore()
	ctx := context.Background()
	start := NewMockClocker().Now()

	require.NoError(t, bs.Add(ctx, testLogEntry("l:1", start, "1", ActionAddition)))
	require.NoError(t, bs.Add(ctx, testLogEntry("l:3", start.Add(2*time.Minute), "2", ActionAddition)))
	require.NoError(t, bs.Add(ctx, testLogEntry("l:2", start.Add(time.Minute), "1", ActionChange)))

	t.Run("most recent first", func(t *testing.T) {
		entries, err := bs.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "l:3", entries[0].ID)
		assert.Equal(t, "l:2", entries[1].ID)
		assert.Equal(t, "l:1", entries[2].ID)
	})

	t.Run("limited", func(t *testing.T) {
		entries, err := bs.Recent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "l:3", entries[0].ID)
	})

	t.Run("redelivered entry stored once", func(t *testing.T) {
		require.NoError(t, bs.Add(ctx, testLogEntry("l:1", start, "1", ActionAddition)))
		entries, err := bs.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})
}

func TestBoltStore_ForObject(t *testing.T) {
	bs, err := newTestBoltStore()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltStore()
	ctx := context.Background()
	start := NewMockClocker().Now()

	require.NoError(t, bs.Add(ctx, testLogEntry("l:2", start.Add(time.Hour), "7", ActionChange)))
	require.NoError(t, bs.Add(ctx, testLogEntry("l:1", start, "7", ActionAddition)))
	require.NoError(t, bs.Add(ctx, testLogEntry("l:3", start.Add(time.Minute), "8", ActionAddition)))
	other := testLogEntry("l:4", start, "7", ActionAddition)
	other.ContentType = "catalog.language"
	require.NoError(t, bs.Add(ctx, other))

	entries, err := bs.ForObject(ctx, "catalog.genre", "7")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionAddition, entries[0].ActionFlag)
	assert.Equal(t, ActionChange, entries[1].ActionFlag)

	entries, err = bs.ForObject(ctx, "catalog.genre", "9")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
