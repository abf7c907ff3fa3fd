package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, log.InfoLevel)
)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
}

// Init 按配置的级别重建全局 logger，未知级别按 info 处理
func Init(w io.Writer, level string) {
	lv, err := log.ParseLevel(level)
	if err != nil {
		lv = log.InfoLevel
	}
	mu.Lock()
	logger = newLogger(w, lv)
	mu.Unlock()
}

// L 返回当前全局 logger
func L() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, keyvals ...any) { L().Debug(msg, keyvals...) }

func Info(msg string, keyvals ...any) { L().Info(msg, keyvals...) }

func Warn(msg string, keyvals ...any) { L().Warn(msg, keyvals...) }

func Error(msg string, keyvals ...any) { L().Error(msg, keyvals...) }
