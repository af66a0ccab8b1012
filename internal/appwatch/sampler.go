// Package appwatch samples the host process list and reports which watched
// desktop apps are running and how much CPU they use.
package appwatch

import (
	"context"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zsprackett/agent-office/internal/events"
)

const (
	// CacheTTL is how long a fetched process list is reused.
	CacheTTL = 3500 * time.Millisecond
	// FetchTimeout bounds a single process-list call.
	FetchTimeout = 4 * time.Second
)

// FetchFunc returns the raw process list text.
type FetchFunc func(ctx context.Context) (string, error)

type Sampler struct {
	mu        sync.Mutex
	fetch     FetchFunc
	now       func() time.Time
	cached    string
	fetchedAt time.Time
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Sampler {
	return NewWithFetch(logger, PS)
}

// NewWithFetch creates a Sampler with an injectable fetch function. Used in tests.
func NewWithFetch(logger *slog.Logger, fetch FetchFunc) *Sampler {
	return &Sampler{
		fetch:  fetch,
		now:    time.Now,
		logger: logger,
	}
}

// SetNow replaces the time source. Used in tests only.
func (s *Sampler) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = fn
}

// Sample returns the state of every watched app. Safe to call at any rate;
// the process list is fetched at most once per CacheTTL.
func (s *Sampler) Sample(ctx context.Context) events.AppStates {
	return Parse(s.processList(ctx))
}

// Snapshot implements webserver.SnapshotSource.
func (s *Sampler) Snapshot(ctx context.Context) events.AppStates {
	return s.Sample(ctx)
}

func (s *Sampler) processList(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.fetchedAt.IsZero() && now.Sub(s.fetchedAt) < CacheTTL {
		return s.cached
	}

	fctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()
	out, err := s.fetch(fctx)
	if err != nil {
		// Clear but do not stamp, so the next call retries.
		s.logger.Debug("appwatch: process list failed", "err", err)
		s.cached = ""
		return ""
	}
	s.cached = out
	s.fetchedAt = now
	return out
}

// PS runs `ps aux`.
func PS(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "ps", "aux").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Parse computes app states from `ps aux` output. Every watched app appears in
// the result; apps with no matching line are inactive with zero CPU.
func Parse(psOutput string) events.AppStates {
	lines := strings.Split(psOutput, "\n")
	states := make(events.AppStates, len(events.WatchedApps))
	for _, app := range events.WatchedApps {
		running := false
		cpu := 0.0
		for _, line := range lines {
			if isSamplerLine(line) {
				continue
			}
			if !matchesAny(line, app.Aliases) {
				continue
			}
			running = true
			cpu += cpuColumn(line)
		}
		states[app.ID] = events.AppState{
			Active: running,
			CPU:    math.Min(events.MaxCPU, math.Round(cpu*10)/10),
		}
	}
	return states
}

// isSamplerLine skips lines produced by the sampling command itself.
func isSamplerLine(line string) bool {
	return strings.Contains(line, "grep") || strings.Contains(line, "ps aux")
}

func matchesAny(line string, aliases []string) bool {
	lower := strings.ToLower(line)
	for _, a := range aliases {
		if strings.Contains(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// cpuColumn reads the %CPU column (third field) of a ps aux line.
func cpuColumn(line string) float64 {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
