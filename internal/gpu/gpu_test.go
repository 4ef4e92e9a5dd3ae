package gpu

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
)

type fakeBackend struct {
	name    string
	samples []model.GpuSample
	err     error
	calls   int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Probe(context.Context) ([]model.GpuSample, error) {
	f.calls++
	return f.samples, f.err
}

func newTestMonitor(history int, backends ...Backend) *Monitor {
	return New(logger.Discard(), history, "/nonexistent", WithBackends(backends...))
}

func TestProbeUnionsBackends(t *testing.T) {
	nv := &fakeBackend{name: "nvidia", samples: []model.GpuSample{{Vendor: "NVIDIA", Util: 70}}}
	amd := &fakeBackend{name: "amd", err: errors.New("permission denied")}
	intel := &fakeBackend{name: "intel", samples: []model.GpuSample{{Vendor: "Intel", Util: 5}}}
	m := newTestMonitor(10, nv, amd, intel)

	got, err := m.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if len(got) != 2 || got[0].Vendor != "NVIDIA" || got[1].Vendor != "Intel" {
		t.Fatalf("Probe() = %+v", got)
	}
	if got[0].Index != 0 || got[1].Index != 1 {
		t.Errorf("indices = %d, %d, want 0, 1", got[0].Index, got[1].Index)
	}
	if amd.calls != 1 {
		t.Error("failing backend did not run")
	}
}

func TestProbeErrors(t *testing.T) {
	t.Run("no devices anywhere", func(t *testing.T) {
		m := newTestMonitor(10,
			&fakeBackend{name: "nvidia", err: ErrNoDevice},
			&fakeBackend{name: "amd"},
		)
		if _, err := m.Probe(context.Background()); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Probe() error = %v, want ErrUnavailable", err)
		}
	})
	t.Run("backend failure", func(t *testing.T) {
		m := newTestMonitor(10,
			&fakeBackend{name: "nvidia", err: errors.New("nvidia-smi failed: driver mismatch")},
			&fakeBackend{name: "amd", err: ErrNoDevice},
		)
		_, err := m.Probe(context.Background())
		var pe *ProbeError
		if !errors.As(err, &pe) {
			t.Fatalf("Probe() error = %v, want *ProbeError", err)
		}
		if errors.Is(err, ErrUnavailable) {
			t.Error("backend failure reported as unavailable")
		}
		if !strings.Contains(err.Error(), "driver mismatch") || !strings.HasPrefix(err.Error(), "no GPUs found. Errors: ") {
			t.Errorf("Error() = %q", err.Error())
		}
	})
}

func TestDisabledIsIdempotent(t *testing.T) {
	m := NewDisabled()
	for i := 0; i < 3; i++ {
		got, err := m.Probe(context.Background())
		if err != ErrDisabled {
			t.Fatalf("Probe() #%d error = %v, want ErrDisabled", i, err)
		}
		if got != nil {
			t.Fatalf("Probe() #%d returned samples", i)
		}
	}
	m.Record([]model.GpuSample{{Index: 0, Util: 50}})
	if n := m.HistoryLen(0); n != 0 {
		t.Errorf("disabled monitor advanced history to %d", n)
	}
	if m.Enabled() {
		t.Error("Enabled() = true")
	}
	if ErrDisabled.Error() != "GPU monitoring disabled by configuration" {
		t.Errorf("ErrDisabled = %q", ErrDisabled.Error())
	}
}

func TestRecordHistory(t *testing.T) {
	m := newTestMonitor(3)
	var last []model.GpuSample
	for i := 1; i <= 5; i++ {
		last = m.Record([]model.GpuSample{
			{Index: 0, Util: float64(i * 10), MemUsed: 50, MemTotal: 100},
			{Index: 1, Util: 1},
		})
	}
	if got := last[0].UtilHistory; len(got) != 3 || got[0] != 30 || got[2] != 50 {
		t.Errorf("UtilHistory = %v, want [30 40 50]", got)
	}
	if got := last[0].MemHistory; len(got) != 3 || got[0] != 50 {
		t.Errorf("MemHistory = %v, want three 50s", got)
	}
	if got := last[1].MemHistory; got[0] != 0 {
		t.Errorf("zero-VRAM device MemHistory = %v", got)
	}

	// device 1 disappears: its history stays bounded and stops growing
	m.Record([]model.GpuSample{{Index: 0, Util: 60}})
	if n := m.HistoryLen(1); n != 3 {
		t.Errorf("HistoryLen(1) = %d, want 3", n)
	}
}

func TestPeakUtil(t *testing.T) {
	if PeakUtil(nil) != nil {
		t.Error("PeakUtil(nil) != nil")
	}
	got := PeakUtil([]model.GpuSample{{Util: 20}, {Util: 85}, {Util: 40}})
	if got == nil || *got != 85 {
		t.Errorf("PeakUtil() = %v, want 85", got)
	}
}
