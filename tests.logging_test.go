package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestCreateLogFilePath(t *testing.T) {
	at := time.Date(2023, 7, 2, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, filepath.Join("logs", "20230702.090503.prod.log"), CreateLogFilePath("logs", "prod", at))
}

func TestRSyncWrite_Rotation(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "logs")
	clock := NewMockClocker()
	w := NewRSyncWriter(&Config{LogFolder: folder, LogMaxSize: 1}, clock)
	w.limit = 16
	defer w.Close()

	require.NoError(t, w.Sync())
	_, err := w.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 1, w.Rotations())

	clock.MockNow = clock.MockNow.Add(time.Second)
	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 2, w.Rotations())

	_, err = w.Write(make([]byte, 17))
	assert.Error(t, err)

	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	files, err := os.ReadDir(folder)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasSuffix(f.Name(), ".dev.log"), f.Name())
	}
}

func TestSetupLogging(t *testing.T) {
	folder := t.TempDir()
	config := &Config{
		IsProduction: true,
		LogFolder:    folder,
		LogMaxSize:   1,
		LogLevel:     zapcore.InfoLevel,
		GitCommit:    "abc123",
	}
	w := NewRSyncWriter(config, NewMockClocker())
	logger, flush := SetupLogging(config, w, NewTickClock(NewMockClocker()))
	logger.Debug("hidden")
	logger.Info("catalog ready")
	require.NoError(t, flush())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(folder, "20230702.000000.prod.log"))
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, `"msg":"catalog ready"`)
	assert.Contains(t, line, `"lvl":"info"`)
	assert.Contains(t, line, `"app.commit":"abc123"`)
	assert.NotContains(t, line, "hidden")
}
