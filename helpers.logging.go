package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LoggerContextKey ContextKey = "request.logger"

	megabyte = 1 << 20
)

// RSyncWrite is a size-rotated and concurrent safe log file writer used as
// the zap file sink. A new file is opened on first write and each time the
// next entry would push the current file over the configured max size.
type RSyncWrite struct {
	mu        sync.Mutex
	clock     Clocker
	file      *os.File
	folder    string
	limit     int64
	size      int64
	env       string
	rotations int
}

// NewRSyncWriter builds the file sink from the logging settings. LogMaxSize is in megabytes.
func NewRSyncWriter(config *Config, clock Clocker) *RSyncWrite {
	env := "dev"
	if config.IsProduction {
		env = "prod"
	}
	return &RSyncWrite{
		clock:  clock,
		folder: config.LogFolder,
		limit:  int64(config.LogMaxSize) * megabyte,
		env:    env,
	}
}

// Close closes the current log file, if any.
func (rsw *RSyncWrite) Close() error {
	rsw.mu.Lock()
	defer rsw.mu.Unlock()
	if rsw.file == nil {
		return nil
	}
	err := rsw.file.Close()
	rsw.file = nil
	return err
}

// Sync flushes the current log file.
func (rsw *RSyncWrite) Sync() error {
	rsw.mu.Lock()
	defer rsw.mu.Unlock()
	if rsw.file == nil {
		return nil
	}
	return rsw.file.Sync()
}

// Rotations reports how many files were opened so far.
func (rsw *RSyncWrite) Rotations() int {
	rsw.mu.Lock()
	defer rsw.mu.Unlock()
	return rsw.rotations
}

// Write implements io.Writer and rotates the file when it is full.
func (rsw *RSyncWrite) Write(p []byte) (int, error) {
	rsw.mu.Lock()
	defer rsw.mu.Unlock()

	size := int64(len(p))
	if size > rsw.limit {
		return 0, fmt.Errorf("logging: entry of %d bytes exceeds max file size of %d bytes", size, rsw.limit)
	}
	if rsw.file == nil || rsw.size+size > rsw.limit {
		if err := rsw.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := rsw.file.Write(p)
	rsw.size += int64(n)
	return n, err
}

func (rsw *RSyncWrite) rotate() error {
	if rsw.file != nil {
		if err := rsw.file.Close(); err != nil {
			return err
		}
		rsw.file = nil
	}
	if err := os.MkdirAll(rsw.folder, 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(CreateLogFilePath(rsw.folder, rsw.env, rsw.clock.Now()), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	rsw.file = file
	rsw.size = 0
	rsw.rotations++
	return nil
}

// stdoutSyncer is the console sink. Sync is a no-op since calling it on
// os.Stdout fails on some platforms with `handle is invalid`.
type stdoutSyncer struct {
	out *os.File
}

func (s stdoutSyncer) Sync() error { return nil }

func (s stdoutSyncer) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func logEncoderConfig(isProd bool) zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	if isProd {
		ec = zap.NewProductionEncoderConfig()
	}
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.LevelKey = "lvl"
	ec.NameKey = "name"
	ec.MessageKey = "msg"
	ec.CallerKey = "caller"
	ec.StacktraceKey = "skt"
	return ec
}

// SetupLogging builds the service logger. Entries always go as JSON to the
// rotated file; in development they are teed to the console as well. Only
// fatal entries carry a stack trace and every entry is tagged with the build
// details. The returned function flushes the logger.
func SetupLogging(config *Config, w *RSyncWrite, clock TickerClocker) (*zap.Logger, func() error) {
	ec := logEncoderConfig(config.IsProduction)
	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewJSONEncoder(ec), w, config.LogLevel)}
	if !config.IsProduction {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.Lock(stdoutSyncer{os.Stdout}), config.LogLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.FatalLevel),
		zap.WithClock(clock),
	).With(
		zap.String("app.commit", config.GitCommit),
		zap.String("app.tag", config.GitTag),
		zap.String("app.built", config.BuildTime),
	)

	flusher := func() error {
		if err := logger.Sync(); err != nil {
			return fmt.Errorf("[flush logs]: %w", err)
		}
		return nil
	}
	return logger, flusher
}

// GetLoggerFromContext retrieves the request scoped logger set by the core middleware.
// Outside of that middleware it falls back to the api logger tagged with the request id.
func (api *APIHandler) GetLoggerFromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*zap.Logger); ok {
		return logger
	}
	return api.logger.With(zap.String("request.id", GetValueFromContext(ctx, RequestIDContextKey)))
}

// CreateLogFilePath returns the path of a log file opened at t, named
// `<yyyymmdd>.<hhmmss>.<env>.log`.
func CreateLogFilePath(folder, env string, t time.Time) string {
	return filepath.Join(folder, t.Format("20060102.150405")+"."+env+".log")
}
