// Package collector runs one fan-out cycle over the host, GPU and container
// monitors and merges the results into a Snapshot.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/Dicklesworthstone/sysmoni/internal/config"
	"github.com/Dicklesworthstone/sysmoni/internal/container"
	"github.com/Dicklesworthstone/sysmoni/internal/gpu"
	"github.com/Dicklesworthstone/sysmoni/internal/host"
	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

const containerTimeoutMsg = "Container collection timeout"

// Host is the host probe surface; *host.Monitor implements it.
type Host interface {
	Refresh()
	Processes(includeSystem bool, filter string) []model.ProcessSample
	Detailed(pid int32) (*model.DetailedProcess, error)
	Cores() []model.CoreSample
	Disks() []model.DiskSample
	Networks() []model.NetworkSample
	Temperatures() model.Temperatures
	Sensors() []model.SensorSample
	Global(netDown, netUp, diskRead, diskWrite uint64, gpuUtil *float64) model.GlobalUsage
	TotalMemory() uint64
	SystemInfo() model.SystemInfo
}

// GPU is the GPU probe surface; *gpu.Monitor implements it.
type GPU interface {
	Enabled() bool
	Probe(ctx context.Context) ([]model.GpuSample, error)
	Record(samples []model.GpuSample) []model.GpuSample
}

// Params are the user-controlled inputs of one cycle.
type Params struct {
	ShowSystem  bool
	Filter      string
	SortBy      host.SortKey
	Ascending   bool
	SelectedPID int32 // 0 for none
}

// histories are advanced together, once per collected cycle, in field order.
type histories struct {
	cpu, mem, netDown, netUp, diskRead, diskWrite, gpu *units.History[float64]
}

func newHistories(n int) histories {
	return histories{
		cpu:       units.NewHistory[float64](n),
		mem:       units.NewHistory[float64](n),
		netDown:   units.NewHistory[float64](n),
		netUp:     units.NewHistory[float64](n),
		diskRead:  units.NewHistory[float64](n),
		diskWrite: units.NewHistory[float64](n),
		gpu:       units.NewHistory[float64](n),
	}
}

// seed copies the buffers of a previous GlobalUsage, used when a collector
// takes over from an earlier one.
func (h histories) seed(prev *model.GlobalUsage) {
	pairs := []struct {
		dst *units.History[float64]
		src []float64
	}{
		{h.cpu, prev.CPUHistory},
		{h.mem, prev.MemHistory},
		{h.netDown, prev.NetDownHistory},
		{h.netUp, prev.NetUpHistory},
		{h.diskRead, prev.DiskReadHistory},
		{h.diskWrite, prev.DiskWriteHistory},
		{h.gpu, prev.GPUHistory},
	}
	for _, p := range pairs {
		for _, v := range p.src {
			p.dst.Push(v)
		}
	}
}

func (h histories) push(g *model.GlobalUsage) {
	h.cpu.Push(g.CPU)
	h.mem.Push(g.MemPercent())
	h.netDown.Push(float64(g.NetDown))
	h.netUp.Push(float64(g.NetUp))
	h.diskRead.Push(float64(g.DiskRead))
	h.diskWrite.Push(float64(g.DiskWrite))
	// no GPU reading leaves the GPU buffer where it was
	if g.GPUUtil != nil {
		h.gpu.Push(*g.GPUUtil)
	}

	g.CPUHistory = h.cpu.Values()
	g.MemHistory = h.mem.Values()
	g.NetDownHistory = h.netDown.Values()
	g.NetUpHistory = h.netUp.Values()
	g.DiskReadHistory = h.diskRead.Values()
	g.DiskWriteHistory = h.diskWrite.Values()
	g.GPUHistory = h.gpu.Values()
}

// Collector owns the monitors and the global history buffers. Collect is not
// safe for concurrent use; Run is its only caller in production.
type Collector struct {
	cfg        config.Config
	log        logger.Logger
	host       Host
	gpu        GPU
	containers container.Monitor
	now        func() time.Time

	hist   histories
	cycles int
}

type Option func(*Collector)

// WithClock replaces time.Now for cost measurement and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

func New(cfg config.Config, log logger.Logger, h Host, g GPU, ctr container.Monitor, opts ...Option) *Collector {
	c := &Collector{
		cfg:        cfg,
		log:        log,
		host:       h,
		gpu:        g,
		containers: ctr,
		now:        time.Now,
		hist:       newHistories(cfg.HistoryLength),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs one cycle. Subsystem failures end up in the snapshot's error
// fields or as empty lists; Collect itself never fails.
func (c *Collector) Collect(ctx context.Context, prev *model.GlobalUsage, p Params) model.Snapshot {
	start := c.now()
	if c.cycles == 0 && prev != nil {
		c.hist.seed(prev)
	}
	c.cycles++
	c.host.Refresh()

	snap := model.Snapshot{}

	snap.Processes = c.host.Processes(p.ShowSystem, p.Filter)
	host.Sort(snap.Processes, p.SortBy, p.Ascending, c.host.TotalMemory())
	if p.SelectedPID != 0 {
		d, err := c.host.Detailed(p.SelectedPID)
		if err != nil {
			c.log.Debug("failed to read process details", "pid", p.SelectedPID, "error", err)
		}
		if d != nil {
			// the table row carries this cycle's rate, not a lifetime average
			for _, row := range snap.Processes {
				if row.PID == d.PID {
					d.CPU = row.CPU
					break
				}
			}
		}
		snap.Detailed = d
	}

	snap.Cores = c.host.Cores()
	snap.Disks = c.host.Disks()
	if c.cfg.EnableNetwork {
		snap.Networks = c.host.Networks()
	} else {
		snap.Networks = []model.NetworkSample{}
	}

	var netDown, netUp, diskRead, diskWrite uint64
	for _, n := range snap.Networks {
		netDown += n.DownRate
		netUp += n.UpRate
	}
	for _, pr := range snap.Processes {
		diskRead += pr.DiskRead
		diskWrite += pr.DiskWrite
	}

	snap.Containers, snap.ContainerError = c.collectContainers(ctx)
	snap.GPUs, snap.GPUError = c.collectGPUs(ctx)

	snap.Temperatures = c.host.Temperatures()
	if len(snap.Temperatures.GPUs) == 0 {
		for _, g := range snap.GPUs {
			if g.Temp > 0 {
				snap.Temperatures.GPUs = append(snap.Temperatures.GPUs, g.Temp)
			}
		}
	}
	snap.Sensors = c.host.Sensors()

	snap.Global = c.host.Global(netDown, netUp, diskRead, diskWrite, gpu.PeakUtil(snap.GPUs))
	c.hist.push(&snap.Global)

	end := c.now()
	snap.CapturedAt = end
	snap.CollectionCost = end.Sub(start)
	if snap.CollectionCost > c.cfg.Interval/2 {
		snap.Slow = true
		c.log.Warn("slow data collection", "cost", snap.CollectionCost, "interval", c.cfg.Interval)
	}
	return snap
}

func (c *Collector) collectContainers(ctx context.Context) ([]model.ContainerSample, string) {
	if !c.cfg.EnableDocker {
		return []model.ContainerSample{}, ""
	}
	if !c.containers.Available() {
		if err := c.containers.Reason(); err != nil {
			return []model.ContainerSample{}, err.Error()
		}
		return []model.ContainerSample{}, "Docker not available"
	}

	timeout := c.cfg.OperationTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		list []model.ContainerSample
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		list, err := c.containers.List(ctx, timeout)
		ch <- result{list, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && ctx.Err() != nil {
			c.log.Warn("container collection timed out", "timeout", timeout)
			return []model.ContainerSample{}, containerTimeoutMsg
		}
		if r.err != nil {
			c.log.Warn("container collection failed", "error", r.err)
			return []model.ContainerSample{}, r.err.Error()
		}
		return r.list, ""
	case <-ctx.Done():
		c.log.Warn("container collection timed out", "timeout", timeout)
		return []model.ContainerSample{}, containerTimeoutMsg
	}
}

func (c *Collector) collectGPUs(ctx context.Context) ([]model.GpuSample, string) {
	samples, err := c.gpu.Probe(ctx)
	if err != nil {
		if !errors.Is(err, gpu.ErrDisabled) && !errors.Is(err, gpu.ErrUnavailable) {
			c.log.Warn("gpu probe failed", "error", err)
		}
		return []model.GpuSample{}, err.Error()
	}
	return c.gpu.Record(samples), ""
}

// SystemInfo returns the static host facts with the availability of each
// optional subsystem.
func (c *Collector) SystemInfo() model.SystemInfo {
	info := c.host.SystemInfo()
	info.Features = model.Features{
		Docker:   c.cfg.EnableDocker && c.containers.Available(),
		GPU:      c.cfg.EnableGPU && c.gpu.Enabled(),
		Network:  c.cfg.EnableNetwork,
		SafeMode: c.cfg.SafeMode,
	}
	if err := c.containers.Reason(); err != nil {
		info.Features.DockerReason = err.Error()
	}
	return info
}

// Logs forwards to the container monitor.
func (c *Collector) Logs(ctx context.Context, id string, tail int) ([]string, error) {
	return c.containers.Logs(ctx, id, tail)
}

// Detailed reads one process outside the cycle, for on-demand queries.
func (c *Collector) Detailed(pid int32) (*model.DetailedProcess, error) {
	return c.host.Detailed(pid)
}
