// Package applog wires log/slog for the relay and the dashboard. Records go
// to one file per day under the configured log directory.
package applog

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// FilePrefix names every log file: agent-office-YYYY-MM-DD.log.
const FilePrefix = "agent-office-"

// KeepDays is how many daily files Init retains.
const KeepDays = 7

const dateLayout = "2006-01-02"

func fileName(dir, date string) string {
	return filepath.Join(dir, FilePrefix+date+".log")
}

// DailyRotator appends to today's file and switches files when the local
// date changes. On each switch, files beyond maxDays are removed oldest first.
type DailyRotator struct {
	mu      sync.Mutex
	dir     string
	maxDays int
	now     func() time.Time

	date string
	file *os.File
}

func NewDailyRotator(dir string, maxDays int) *DailyRotator {
	return &DailyRotator{dir: dir, maxDays: maxDays, now: time.Now}
}

// SetNow replaces the time source. Used in tests only.
func (r *DailyRotator) SetNow(fn func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = fn
}

func (r *DailyRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if today := r.now().Format(dateLayout); today != r.date {
		if err := r.openLocked(today); err != nil {
			return 0, err
		}
	}
	return r.file.Write(p)
}

func (r *DailyRotator) openLocked(date string) error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	f, err := os.OpenFile(fileName(r.dir, date), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	r.file, r.date = f, date
	r.pruneLocked()
	return nil
}

// pruneLocked relies on the date layout sorting lexically.
func (r *DailyRotator) pruneLocked() {
	files, err := filepath.Glob(filepath.Join(r.dir, FilePrefix+"*.log"))
	if err != nil || len(files) <= r.maxDays {
		return
	}
	slices.Sort(files)
	for _, name := range files[:len(files)-r.maxDays] {
		os.Remove(name)
	}
}

func (r *DailyRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// InitConfig holds configuration for Init.
type InitConfig struct {
	LogDir   string
	LogLevel string
	// Console, when set, receives a copy of every record. serve passes
	// os.Stderr; watch leaves it nil because the dashboard owns the terminal.
	Console io.Writer
}

// Init makes a text-handler logger the process default and points the
// stdlib log package at the same sink. Close the returned io.Closer on exit.
func Init(cfg InitConfig) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := NewDailyRotator(cfg.LogDir, KeepDays)

	var sink io.Writer = rotator
	if cfg.Console != nil {
		sink = io.MultiWriter(rotator, cfg.Console)
	}

	logger := slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	log.SetOutput(sink)
	log.SetFlags(0)
	return logger, rotator, nil
}

// ParseLevel maps debug, warn/warning and error (any case) to slog levels.
// Anything else, including "", is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
