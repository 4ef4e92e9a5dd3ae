// Package gpu probes GPU telemetry across vendor backends and keeps bounded
// per-device utilisation and memory history.
package gpu

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

var (
	// ErrDisabled is returned by every probe of a monitor built with NewDisabled.
	ErrDisabled = errors.New("GPU monitoring disabled by configuration")
	// ErrUnavailable means every backend ran and none found a device.
	ErrUnavailable = errors.New("no supported GPUs found")
	// ErrNoDevice is returned by a backend that found nothing to report.
	ErrNoDevice = errors.New("no device")
)

// ProbeError collects backend failures when no backend produced a sample.
type ProbeError struct {
	Errs map[string]error
}

func (e *ProbeError) Error() string {
	names := make([]string, 0, len(e.Errs))
	for name := range e.Errs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Errs[name]))
	}
	return "no GPUs found. Errors: " + strings.Join(parts, ", ")
}

// Backend reports the devices of one vendor.
type Backend interface {
	Name() string
	Probe(ctx context.Context) ([]model.GpuSample, error)
}

// Monitor runs every backend and unions the results, so hosts with GPUs from
// several vendors report all of them.
type Monitor struct {
	log      logger.Logger
	backends []Backend
	disabled bool
	max      int
	util     map[int]*units.History[float64]
	mem      map[int]*units.History[float64]
}

type Option func(*Monitor)

// WithBackends replaces the default nvidia, amd, intel backends.
func WithBackends(b ...Backend) Option {
	return func(m *Monitor) { m.backends = b }
}

// New returns a monitor over the default backends reading sysfs under sysRoot.
func New(log logger.Logger, historyLen int, sysRoot string, opts ...Option) *Monitor {
	names := newPCINames(log)
	m := &Monitor{
		log: log,
		backends: []Backend{
			NewNvidia(log, sysRoot),
			NewAMD(log, sysRoot, names.lookup),
			NewIntel(log, sysRoot, names.lookup),
		},
		max:  historyLen,
		util: make(map[int]*units.History[float64]),
		mem:  make(map[int]*units.History[float64]),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewDisabled returns a monitor whose Probe always fails with ErrDisabled.
func NewDisabled() *Monitor {
	return &Monitor{disabled: true, util: map[int]*units.History[float64]{}, mem: map[int]*units.History[float64]{}}
}

// Enabled reports whether the monitor was built with GPU probing on.
func (m *Monitor) Enabled() bool { return !m.disabled }

// Probe invokes each backend in order and concatenates what they found. It
// fails only when no backend produced a sample.
func (m *Monitor) Probe(ctx context.Context) ([]model.GpuSample, error) {
	if m.disabled {
		return nil, ErrDisabled
	}
	var (
		out  []model.GpuSample
		errs = make(map[string]error)
	)
	for _, b := range m.backends {
		samples, err := b.Probe(ctx)
		if err != nil {
			m.log.Debug("gpu backend failed", "backend", b.Name(), "error", err)
			errs[b.Name()] = err
			continue
		}
		if len(samples) == 0 {
			errs[b.Name()] = ErrNoDevice
			continue
		}
		out = append(out, samples...)
	}
	if len(out) > 0 {
		for i := range out {
			out[i].Index = i
		}
		return out, nil
	}
	for _, err := range errs {
		if !errors.Is(err, ErrNoDevice) {
			return nil, &ProbeError{Errs: errs}
		}
	}
	return nil, ErrUnavailable
}

// Record appends one utilisation and one memory-percent value per device
// index and attaches the resulting histories to the returned samples.
// Histories of indices that disappear are kept but no longer grow.
func (m *Monitor) Record(samples []model.GpuSample) []model.GpuSample {
	if m.disabled {
		return samples
	}
	out := make([]model.GpuSample, len(samples))
	for i, s := range samples {
		u, ok := m.util[s.Index]
		if !ok {
			u = units.NewHistory[float64](m.max)
			m.util[s.Index] = u
		}
		mh, ok := m.mem[s.Index]
		if !ok {
			mh = units.NewHistory[float64](m.max)
			m.mem[s.Index] = mh
		}
		u.Push(s.Util)
		mh.Push(s.MemPercent())
		s.UtilHistory = u.Values()
		s.MemHistory = mh.Values()
		out[i] = s
	}
	return out
}

// HistoryLen reports how many samples are stored for index.
func (m *Monitor) HistoryLen(index int) int {
	if h, ok := m.util[index]; ok {
		return h.Len()
	}
	return 0
}

// PeakUtil is the busiest device's utilisation, nil when there are no devices.
func PeakUtil(samples []model.GpuSample) *float64 {
	if len(samples) == 0 {
		return nil
	}
	peak := samples[0].Util
	for _, s := range samples[1:] {
		if s.Util > peak {
			peak = s.Util
		}
	}
	return &peak
}
