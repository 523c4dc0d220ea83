package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a console logger without timestamps, matching the plain
// key=value output operators grep for.
func newLogger(w io.Writer, level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = ""
	cfg.CallerKey = ""
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

var failureLogMu sync.Mutex

// logFailure appends one tab separated line for a failed target. Empty paths disable it.
func logFailure(path, requestID, target string, err error) error {
	if path == "" || err == nil {
		return nil
	}

	if requestID == "" {
		requestID = "unknown"
	}
	line := fmt.Sprintf("%s\tlevel=ERROR\trequest-id=%s\ttarget=%s\tmessage=%v\n",
		time.Now().Format(time.RFC3339), requestID, target, err)

	failureLogMu.Lock()
	defer failureLogMu.Unlock()

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return mkErr
		}
	}

	f, openErr := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if openErr != nil {
		return openErr
	}
	defer f.Close()

	_, writeErr := f.WriteString(line)
	return writeErr
}

// recordFailure logs err and appends it to the fail log, returning err so
// callers can propagate it.
func (o *cliOptions) recordFailure(target string, err error) error {
	o.logger.Error("failed", zap.String("target", target), zap.Error(err))
	if logErr := logFailure(o.settings.FailLog, requestIDOf(err), target, err); logErr != nil {
		return fmt.Errorf("%w; also failed to write fail log: %v", err, logErr)
	}
	return err
}
