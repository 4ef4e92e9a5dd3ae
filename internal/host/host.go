// Package host samples kernel-exposed CPU, memory, process, disk, network and
// sensor state. Rates are derived from successive absolute counters kept in
// per-entity maps that are replaced wholesale on every call.
package host

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	gohost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/Dicklesworthstone/sysmoni/internal/logger"
)

// Monitor is not safe for concurrent use; the collector drives it from one goroutine.
type Monitor struct {
	log      logger.Logger
	sysRoot  string
	isSystem func(name string) bool
	activity bool
	selfPID  int32
	now      func() time.Time

	logical int

	// CPU
	prevTotal float64
	prevIdle  float64
	prevCore  []cpu.TimesStat

	// processes
	prevProc  map[int32]procCounters
	lastProc  time.Time
	userCache map[uint32]string

	// disks / network
	prevDisk map[string]disk.IOCountersStat
	lastDisk time.Time
	prevNet  map[string]net.IOCountersStat
	lastNet  time.Time

	// sensors, refreshed once per cycle
	components []gohost.TemperatureStat

	mem        *memoryDetails
	diskModels map[string]diskMeta
}

type Option func(*Monitor)

// WithSysRoot points sysfs lookups somewhere other than /sys.
func WithSysRoot(root string) Option {
	return func(m *Monitor) { m.sysRoot = root }
}

// WithSystemPredicate replaces the name-prefix system process heuristic.
func WithSystemPredicate(fn func(name string) bool) Option {
	return func(m *Monitor) {
		if fn != nil {
			m.isSystem = fn
		}
	}
}

// WithActivityStatus reports any process with nonzero CPU, and this process
// itself, as "running" regardless of the scheduler state.
func WithActivityStatus(on bool) Option {
	return func(m *Monitor) { m.activity = on }
}

// WithClock overrides time.Now for rate computation.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func New(log logger.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		log:       log,
		sysRoot:   "/sys",
		isSystem:  IsSystemProcess,
		selfPID:   int32(os.Getpid()),
		now:       time.Now,
		prevProc:  make(map[int32]procCounters),
		userCache: make(map[uint32]string),
		prevDisk:  make(map[string]disk.IOCountersStat),
		prevNet:   make(map[string]net.IOCountersStat),
	}
	for _, opt := range opts {
		opt(m)
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		m.logical = n
	} else {
		m.logical = 1
	}
	return m
}

// Refresh rereads the sensor components shared by Cores, Disks, Temperatures,
// Sensors and Global. Call it once at the start of each cycle.
func (m *Monitor) Refresh() {
	temps, err := gohost.SensorsTemperatures()
	if err != nil && len(temps) == 0 {
		m.log.Debug("failed to read temperature sensors", "error", err)
	}
	m.components = temps
}

// LogicalCores is the divisor used for per-process CPU normalisation.
func (m *Monitor) LogicalCores() int { return m.logical }

func (m *Monitor) path(parts ...string) string {
	return filepath.Join(append([]string{m.sysRoot}, parts...)...)
}

// elapsedSince returns seconds since last, floored at 0.1s so that two calls
// in quick succession do not inflate rates.
func elapsedSince(now, last time.Time) float64 {
	if last.IsZero() {
		return 0.1
	}
	secs := now.Sub(last).Seconds()
	if secs < 0.1 {
		return 0.1
	}
	return secs
}

// componentLabel turns gopsutil sensor keys like "coretemp_package_id_0" into
// "coretemp package id 0" so label matching works on words.
func componentLabel(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", " "))
}

func componentChip(key string) string {
	if i := strings.IndexByte(key, '_'); i > 0 {
		return key[:i]
	}
	return key
}
