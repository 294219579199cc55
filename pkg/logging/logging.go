// Package logging provides the levelled logger shared by the processing
// pipeline and the command-line front end.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Level enumerates severity tiers.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// Logger is a concurrency-safe, levelled logger. Batch workers share one
// instance, so every write goes through the mutex.
type Logger struct {
	mu    sync.Mutex
	level Level
	inner *log.Logger
}

// New creates a logger writing to w at the given minimum level.
func New(w io.Writer, minLevel Level) *Logger {
	return &Logger{
		level: minLevel,
		inner: log.New(w, "", 0),
	}
}

var (
	global  *Logger
	logOnce sync.Once
)

// Init creates the singleton logger. Call once at startup; quiet raises the
// floor from INFO to WARN.
func Init(quiet bool) *Logger {
	logOnce.Do(func() {
		level := INFO
		if quiet {
			level = WARN
		}
		global = New(os.Stderr, level)
	})
	return global
}

// L returns the global logger, initialising a default one if needed.
func L() *Logger {
	if global == nil {
		return Init(false)
	}
	return global
}

func (l *Logger) log(lvl Level, format string, args ...any) {
	if lvl < l.level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	l.inner.Printf("[%s] %s  %s", lvl, ts, msg)
	l.mu.Unlock()
}

func (l *Logger) Debug(f string, a ...any) { l.log(DEBUG, f, a...) }
func (l *Logger) Info(f string, a ...any)  { l.log(INFO, f, a...) }
func (l *Logger) Warn(f string, a ...any)  { l.log(WARN, f, a...) }
func (l *Logger) Error(f string, a ...any) { l.log(ERROR, f, a...) }
