package debug

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var enabled = os.Getenv("LB_DEBUG") != ""

func Enabled() bool {
	return enabled
}

func Logf(format string, args ...interface{}) {
	if enabled {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// OpLogger appends timestamped lines to a rotating log file. The sync
// engine writes its attempt trail here so lost-race retries can be
// reconstructed after the fact.
type OpLogger struct {
	out *lumberjack.Logger
}

// NewOpLogger opens a rotating log at logPath. Rotation knobs are
// overridable via LB_SYNC_LOG_MAX_SIZE (MB), LB_SYNC_LOG_MAX_BACKUPS, and
// LB_SYNC_LOG_MAX_AGE (days).
func NewOpLogger(logPath string) *OpLogger {
	return &OpLogger{
		out: &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    getEnvInt("LB_SYNC_LOG_MAX_SIZE", 5),
			MaxBackups: getEnvInt("LB_SYNC_LOG_MAX_BACKUPS", 2),
			MaxAge:     getEnvInt("LB_SYNC_LOG_MAX_AGE", 14),
			Compress:   true,
		},
	}
}

func (l *OpLogger) Logf(format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(l.out, "[%s] %s\n", timestamp, msg)
}

func (l *OpLogger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.Close()
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
