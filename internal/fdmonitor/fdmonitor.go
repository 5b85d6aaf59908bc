// Package fdmonitor watches the process's open file descriptor count. Every
// render spawns a converter with pipes and every cache write opens a file, so
// a leak shows up here long before the process hits its limit.
package fdmonitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/wilbur182/pixelterm/internal/catalog"
)

const (
	// DefaultWarningThreshold is the FD count that triggers a warning.
	DefaultWarningThreshold = 200
	// DefaultCriticalThreshold is the FD count that triggers a critical warning.
	DefaultCriticalThreshold = 500
	// DefaultInterval is the minimum time between two counts.
	DefaultInterval = 10 * time.Second
)

// cacheMarker appears in every disk cache path.
const cacheMarker = "pixelterm_cache_"

// Options configures New. Zero values select the defaults.
type Options struct {
	Warning  int
	Critical int
	Interval time.Duration
	// Dir lists the open descriptors. Defaults to /proc/<pid>/fd on Linux and
	// /dev/fd on macOS.
	Dir string
}

// Monitor counts open descriptors and logs when thresholds are crossed.
type Monitor struct {
	logger   *slog.Logger
	warning  int
	critical int
	interval time.Duration
	dir      string

	mu        sync.Mutex
	lastCheck time.Time
	lastCount int
	now       func() time.Time
}

// New creates a monitor. A nil logger discards.
func New(logger *slog.Logger, opts Options) *Monitor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Warning <= 0 {
		opts.Warning = DefaultWarningThreshold
	}
	if opts.Critical < opts.Warning {
		opts.Critical = max(DefaultCriticalThreshold, opts.Warning)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Dir == "" {
		opts.Dir = defaultDir()
	}
	return &Monitor{
		logger:    logger,
		warning:   opts.Warning,
		critical:  opts.Critical,
		interval:  opts.Interval,
		dir:       opts.Dir,
		lastCount: -1,
		now:       time.Now,
	}
}

func defaultDir() string {
	switch runtime.GOOS {
	case "linux":
		return fmt.Sprintf("/proc/%d/fd", os.Getpid())
	case "darwin":
		return "/dev/fd"
	}
	return ""
}

// Count returns the number of open descriptors, or -1 when they cannot be
// listed.
func (m *Monitor) Count() int {
	if m.dir == "" {
		return -1
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return -1
	}
	return len(entries)
}

// Check counts descriptors at most once per interval and logs a warning
// above the thresholds. reason says what prompted the check. It returns the
// latest count and whether a warning was logged.
func (m *Monitor) Check(reason string) (count int, warned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && m.now().Sub(m.lastCheck) < m.interval {
		return m.lastCount, false
	}
	count = m.Count()
	m.lastCheck = m.now()
	m.lastCount = count
	if count < 0 {
		return count, false
	}

	switch {
	case count >= m.critical:
		m.logger.Warn("critical FD count", "count", count, "threshold", m.critical, "reason", reason, "open", m.Categories())
		return count, true
	case count >= m.warning:
		m.logger.Warn("high FD count", "count", count, "threshold", m.warning, "reason", reason)
		return count, true
	}
	m.logger.Debug("FD count", "count", count, "reason", reason)
	return count, false
}

// Categories groups the open descriptors by what they point at.
func (m *Monitor) Categories() map[string]int {
	info := make(map[string]int)
	if m.dir == "" {
		return info
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return info
	}
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join(m.dir, e.Name()))
		if err != nil {
			continue
		}
		info[categorize(target)]++
	}
	return info
}

func categorize(target string) string {
	switch {
	case strings.HasPrefix(target, "pipe:") || target == "pipe" || target == "anon_inode:[pipe]":
		return "pipe"
	case strings.HasPrefix(target, "socket:") || target == "socket":
		return "socket"
	case strings.Contains(target, cacheMarker):
		return "cache"
	case catalog.IsImageFile(target):
		return "image"
	case strings.HasPrefix(target, "anon_inode:"):
		return "anon"
	case isDirectory(target):
		return "directory"
	}
	return "file"
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
