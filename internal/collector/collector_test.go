package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dicklesworthstone/sysmoni/internal/config"
	"github.com/Dicklesworthstone/sysmoni/internal/container"
	"github.com/Dicklesworthstone/sysmoni/internal/gpu"
	"github.com/Dicklesworthstone/sysmoni/internal/host"
	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
)

var (
	_ Host              = (*host.Monitor)(nil)
	_ GPU               = (*gpu.Monitor)(nil)
	_ container.Monitor = (*fakeContainers)(nil)
)

type fakeHost struct {
	procs    []model.ProcessSample
	nets     []model.NetworkSample
	cpu      float64
	refresh  int
	detailed map[int32]*model.DetailedProcess
}

func (f *fakeHost) Refresh() { f.refresh++ }

func (f *fakeHost) Processes(bool, string) []model.ProcessSample {
	out := make([]model.ProcessSample, len(f.procs))
	copy(out, f.procs)
	return out
}

func (f *fakeHost) Detailed(pid int32) (*model.DetailedProcess, error) {
	if d, ok := f.detailed[pid]; ok {
		return d, nil
	}
	return nil, errors.New("process not found")
}

func (f *fakeHost) Cores() []model.CoreSample        { return []model.CoreSample{{Usage: f.cpu}} }
func (f *fakeHost) Disks() []model.DiskSample        { return nil }
func (f *fakeHost) Networks() []model.NetworkSample  { return f.nets }
func (f *fakeHost) Temperatures() model.Temperatures { return model.Temperatures{} }
func (f *fakeHost) Sensors() []model.SensorSample    { return nil }
func (f *fakeHost) TotalMemory() uint64              { return 1 << 30 }
func (f *fakeHost) SystemInfo() model.SystemInfo     { return model.SystemInfo{Hostname: "box"} }

func (f *fakeHost) Global(netDown, netUp, diskRead, diskWrite uint64, gpuUtil *float64) model.GlobalUsage {
	return model.GlobalUsage{
		CPU:       f.cpu,
		MemUsed:   1 << 29,
		MemTotal:  1 << 30,
		GPUUtil:   gpuUtil,
		NetDown:   netDown,
		NetUp:     netUp,
		DiskRead:  diskRead,
		DiskWrite: diskWrite,
	}
}

type fakeBackend struct {
	samples []model.GpuSample
}

func (b fakeBackend) Name() string { return "fake" }

func (b fakeBackend) Probe(context.Context) ([]model.GpuSample, error) { return b.samples, nil }

type fakeContainers struct {
	list  []model.ContainerSample
	err   error
	delay time.Duration
	calls int
}

func (f *fakeContainers) Available() bool { return true }
func (f *fakeContainers) Reason() error   { return nil }
func (f *fakeContainers) Close() error    { return nil }

func (f *fakeContainers) List(ctx context.Context, _ time.Duration) ([]model.ContainerSample, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.list, f.err
}

func (f *fakeContainers) Logs(context.Context, string, int) ([]string, error) {
	return []string{"line"}, nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.HistoryLength = 10
	return cfg
}

func newTestCollector(cfg config.Config, h Host, g GPU, ctr container.Monitor, opts ...Option) *Collector {
	return New(cfg, logger.Discard(), h, g, ctr, opts...)
}

func TestHistoryBound(t *testing.T) {
	h := &fakeHost{cpu: 12}
	g := gpu.New(logger.Discard(), 10, "/nonexistent", gpu.WithBackends(fakeBackend{samples: []model.GpuSample{{Util: 20}}}))
	c := newTestCollector(testConfig(), h, g, &fakeContainers{})

	var snap model.Snapshot
	for n := 1; n <= 15; n++ {
		snap = c.Collect(context.Background(), nil, Params{})
		want := n
		if want > 10 {
			want = 10
		}
		g := snap.Global
		for name, hist := range map[string][]float64{
			"cpu":        g.CPUHistory,
			"mem":        g.MemHistory,
			"net down":   g.NetDownHistory,
			"net up":     g.NetUpHistory,
			"disk read":  g.DiskReadHistory,
			"disk write": g.DiskWriteHistory,
			"gpu":        g.GPUHistory,
		} {
			if len(hist) != want {
				t.Fatalf("cycle %d: %s history length = %d, want %d", n, name, len(hist), want)
			}
		}
	}
	if snap.Global.MemHistory[9] != 50 {
		t.Errorf("mem history value = %v, want 50", snap.Global.MemHistory[9])
	}
	if h.refresh != 15 {
		t.Errorf("Refresh called %d times, want 15", h.refresh)
	}
}

func TestHistorySeededFromPrevious(t *testing.T) {
	c := newTestCollector(testConfig(), &fakeHost{cpu: 99}, gpu.NewDisabled(), &fakeContainers{})
	prev := &model.GlobalUsage{
		CPUHistory: []float64{1, 2, 3},
		GPUHistory: []float64{0, 0, 0},
	}
	snap := c.Collect(context.Background(), prev, Params{})
	if got := snap.Global.CPUHistory; len(got) != 4 || got[0] != 1 || got[3] != 99 {
		t.Errorf("CPUHistory = %v, want [1 2 3 99]", got)
	}

	// later cycles ignore prev; the collector owns the buffers
	snap = c.Collect(context.Background(), &model.GlobalUsage{CPUHistory: []float64{7}}, Params{})
	if got := snap.Global.CPUHistory; len(got) != 5 || got[0] != 1 {
		t.Errorf("CPUHistory = %v", got)
	}
}

func TestGPUDisabled(t *testing.T) {
	g := gpu.NewDisabled()
	c := newTestCollector(testConfig(), &fakeHost{}, g, &fakeContainers{})
	for i := 0; i < 3; i++ {
		snap := c.Collect(context.Background(), nil, Params{})
		if snap.GPUError != "GPU monitoring disabled by configuration" {
			t.Fatalf("GPUError = %q", snap.GPUError)
		}
		if len(snap.GPUs) != 0 || snap.Global.GPUUtil != nil {
			t.Fatalf("disabled GPU produced samples: %+v", snap.GPUs)
		}
	}
	if g.HistoryLen(0) != 0 {
		t.Error("disabled GPU advanced device history")
	}
}

func TestGPUHistoryHeldWithoutReading(t *testing.T) {
	c := newTestCollector(testConfig(), &fakeHost{cpu: 5}, gpu.NewDisabled(), &fakeContainers{})
	var snap model.Snapshot
	for i := 0; i < 4; i++ {
		snap = c.Collect(context.Background(), nil, Params{})
	}
	if got := snap.Global.GPUHistory; len(got) != 0 {
		t.Errorf("GPUHistory = %v, want empty", got)
	}
	if got := snap.Global.CPUHistory; len(got) != 4 {
		t.Errorf("CPUHistory length = %d, want 4", len(got))
	}

	// seeded GPU values survive cycles without a reading
	c = newTestCollector(testConfig(), &fakeHost{}, gpu.NewDisabled(), &fakeContainers{})
	snap = c.Collect(context.Background(), &model.GlobalUsage{GPUHistory: []float64{40, 60}}, Params{})
	snap = c.Collect(context.Background(), nil, Params{})
	if got := snap.Global.GPUHistory; len(got) != 2 || got[1] != 60 {
		t.Errorf("GPUHistory = %v, want [40 60]", got)
	}
}

func TestGPUUnavailableAndPeak(t *testing.T) {
	none := gpu.New(logger.Discard(), 10, "/nonexistent", gpu.WithBackends(fakeBackend{}))
	c := newTestCollector(testConfig(), &fakeHost{}, none, &fakeContainers{})
	snap := c.Collect(context.Background(), nil, Params{})
	if snap.GPUError != gpu.ErrUnavailable.Error() {
		t.Errorf("GPUError = %q", snap.GPUError)
	}

	two := gpu.New(logger.Discard(), 10, "/nonexistent", gpu.WithBackends(fakeBackend{samples: []model.GpuSample{
		{Util: 30, Temp: 60},
		{Util: 75, Temp: 70},
	}}))
	c = newTestCollector(testConfig(), &fakeHost{}, two, &fakeContainers{})
	snap = c.Collect(context.Background(), nil, Params{})
	if snap.GPUError != "" {
		t.Fatalf("GPUError = %q", snap.GPUError)
	}
	if snap.Global.GPUUtil == nil || *snap.Global.GPUUtil != 75 {
		t.Errorf("GPUUtil = %v, want 75", snap.Global.GPUUtil)
	}
	if len(snap.GPUs[1].UtilHistory) != 1 {
		t.Errorf("device history = %v", snap.GPUs[1].UtilHistory)
	}
	if got := snap.Temperatures.GPUs; len(got) != 2 || got[1] != 70 {
		t.Errorf("GPU temperatures = %v", got)
	}
	if got := snap.Global.GPUHistory; len(got) != 1 || got[0] != 75 {
		t.Errorf("GPUHistory = %v", got)
	}
}

func TestContainerErrors(t *testing.T) {
	t.Run("runtime error", func(t *testing.T) {
		ctr := &fakeContainers{err: &container.Error{Kind: container.Timeout}}
		c := newTestCollector(testConfig(), &fakeHost{}, gpu.NewDisabled(), ctr)
		snap := c.Collect(context.Background(), nil, Params{})
		if snap.ContainerError != "Docker daemon not responding (timeout)" {
			t.Errorf("ContainerError = %q", snap.ContainerError)
		}
		if snap.Containers == nil || len(snap.Containers) != 0 {
			t.Errorf("Containers = %v, want empty", snap.Containers)
		}
	})
	t.Run("overall timeout", func(t *testing.T) {
		cfg := testConfig()
		cfg.Interval = 100 * time.Millisecond
		ctr := &fakeContainers{delay: time.Second}
		c := newTestCollector(cfg, &fakeHost{}, gpu.NewDisabled(), ctr)
		snap := c.Collect(context.Background(), nil, Params{})
		if snap.ContainerError != "Container collection timeout" {
			t.Errorf("ContainerError = %q", snap.ContainerError)
		}
		if len(snap.Global.CPUHistory) != 1 {
			t.Error("container timeout aborted the cycle")
		}
	})
	t.Run("disabled by config", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableDocker = false
		ctr := &fakeContainers{}
		c := newTestCollector(cfg, &fakeHost{}, gpu.NewDisabled(), ctr)
		snap := c.Collect(context.Background(), nil, Params{})
		if snap.ContainerError != "" || ctr.calls != 0 {
			t.Errorf("ContainerError = %q, calls = %d", snap.ContainerError, ctr.calls)
		}
	})
	t.Run("unavailable", func(t *testing.T) {
		ctr := container.NewNull(container.NotCompiled, "")
		c := newTestCollector(testConfig(), &fakeHost{}, gpu.NewDisabled(), ctr)
		snap := c.Collect(context.Background(), nil, Params{})
		if snap.ContainerError != "Docker support not compiled" {
			t.Errorf("ContainerError = %q", snap.ContainerError)
		}
	})
	t.Run("success", func(t *testing.T) {
		ctr := &fakeContainers{list: []model.ContainerSample{{ID: "a"}, {ID: "b"}}}
		c := newTestCollector(testConfig(), &fakeHost{}, gpu.NewDisabled(), ctr)
		snap := c.Collect(context.Background(), nil, Params{})
		if snap.ContainerError != "" || len(snap.Containers) != 2 {
			t.Errorf("Containers = %v, error %q", snap.Containers, snap.ContainerError)
		}
	})
}

func TestAggregatesAndProcesses(t *testing.T) {
	h := &fakeHost{
		procs: []model.ProcessSample{
			{PID: 1, CPU: 5, DiskRead: 100, DiskWrite: 10},
			{PID: 2, CPU: 50, DiskRead: 200},
			{PID: 3, CPU: 20, DiskWrite: 30},
		},
		nets: []model.NetworkSample{
			{Name: "eth0", DownRate: 1000, UpRate: 10},
			{Name: "wlan0", DownRate: 500, UpRate: 5},
		},
		detailed: map[int32]*model.DetailedProcess{2: {PID: 2, Name: "worker", CPU: 380}},
	}
	c := newTestCollector(testConfig(), h, gpu.NewDisabled(), &fakeContainers{})
	snap := c.Collect(context.Background(), nil, Params{SortBy: host.SortCPU, SelectedPID: 2})

	g := snap.Global
	if g.NetDown != 1500 || g.NetUp != 15 || g.DiskRead != 300 || g.DiskWrite != 40 {
		t.Errorf("aggregates = %d/%d/%d/%d", g.NetDown, g.NetUp, g.DiskRead, g.DiskWrite)
	}
	if snap.Processes[0].PID != 2 || snap.Processes[2].PID != 1 {
		t.Errorf("processes not sorted by cpu desc: %+v", snap.Processes)
	}
	if snap.Detailed == nil || snap.Detailed.Name != "worker" {
		t.Fatalf("Detailed = %+v", snap.Detailed)
	}
	if snap.Detailed.CPU != 50 {
		t.Errorf("Detailed.CPU = %v, want the row's 50", snap.Detailed.CPU)
	}

	snap = c.Collect(context.Background(), nil, Params{SelectedPID: 42})
	if snap.Detailed != nil {
		t.Error("missing pid produced a detail record")
	}

	cfg := testConfig()
	cfg.EnableNetwork = false
	c = newTestCollector(cfg, h, gpu.NewDisabled(), &fakeContainers{})
	snap = c.Collect(context.Background(), nil, Params{})
	if len(snap.Networks) != 0 || snap.Global.NetDown != 0 {
		t.Errorf("network disabled but got %v", snap.Networks)
	}
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func TestSlowCycle(t *testing.T) {
	tests := []struct {
		step time.Duration
		slow bool
	}{
		{step: 100 * time.Millisecond, slow: false},
		{step: 500 * time.Millisecond, slow: false},
		{step: 600 * time.Millisecond, slow: true},
	}
	for _, tt := range tests {
		clock := &stepClock{t: time.Unix(1_700_000_000, 0), step: tt.step}
		c := newTestCollector(testConfig(), &fakeHost{}, gpu.NewDisabled(), &fakeContainers{}, WithClock(clock.now))
		snap := c.Collect(context.Background(), nil, Params{})
		if snap.CollectionCost != tt.step || snap.Slow != tt.slow {
			t.Errorf("step %s: cost = %s, slow = %v, want slow %v", tt.step, snap.CollectionCost, snap.Slow, tt.slow)
		}
	}
}

func TestSystemInfoFeatures(t *testing.T) {
	cfg := testConfig()
	cfg.SafeMode = true
	cfg.EnableNetwork = false
	c := newTestCollector(cfg, &fakeHost{}, gpu.NewDisabled(), container.NewNull(container.Disabled, ""))
	info := c.SystemInfo()
	if info.Hostname != "box" {
		t.Errorf("Hostname = %q", info.Hostname)
	}
	f := info.Features
	if f.Docker || f.GPU || f.Network || !f.SafeMode {
		t.Errorf("Features = %+v", f)
	}
	if f.DockerReason != "Docker monitoring disabled by configuration" {
		t.Errorf("DockerReason = %q", f.DockerReason)
	}
}
