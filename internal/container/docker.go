package container

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

// statsConcurrency bounds the in-flight stats requests per cycle.
const statsConcurrency = 16

// Runtime is the subset of the Docker Engine client the monitor uses.
type Runtime interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerStats(ctx context.Context, containerID string, stream bool) (types.ContainerStats, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	Close() error
}

type state int

const (
	stateUninitialized state = iota
	stateConnected
	stateUnavailable
)

// ioCounters are the cumulative network and block counters of one container.
type ioCounters struct {
	netRx, netTx      uint64
	blkRead, blkWrite uint64
}

// Docker is the Monitor backed by a Docker Engine. The first successful ping
// moves it to connected; a first ping that finds no daemon, or a socket it
// may not open, makes it unavailable for good.
type Docker struct {
	log logger.Logger
	rt  Runtime
	now func() time.Time

	// mu guards the fields below and is never held across a daemon request.
	mu      sync.Mutex
	state   state
	failure *Error
	prev    map[string]ioCounters
	last    time.Time
}

type Option func(*Docker)

// WithRuntime replaces the Docker SDK client.
func WithRuntime(rt Runtime) Option {
	return func(d *Docker) { d.rt = rt }
}

// WithClock replaces time.Now for rate computation.
func WithClock(now func() time.Time) Option {
	return func(d *Docker) { d.now = now }
}

// NewDocker builds a client from the DOCKER_* environment with API version
// negotiation. No request is made until the first List.
func NewDocker(log logger.Logger, opts ...Option) *Docker {
	d := &Docker{
		log:  log,
		now:  time.Now,
		prev: make(map[string]ioCounters),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rt == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			log.Warn("failed to create docker client", "error", err)
			d.state = stateUnavailable
			d.failure = &Error{Kind: RuntimeUnreachable, Detail: err.Error(), Err: err}
		} else {
			d.rt = cli
		}
	}
	d.last = d.now()
	return d
}

func (d *Docker) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state != stateUnavailable
}

func (d *Docker) Reason() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == stateUnavailable {
		return d.failure
	}
	return nil
}

func (d *Docker) Close() error {
	if d.rt == nil {
		return nil
	}
	return d.rt.Close()
}

// List pings the daemon within timeout/4, lists running containers within
// timeout/2, then fetches one stats snapshot per container concurrently, each
// within timeout/4. A container whose stats cannot be read is still listed
// with zero usage.
func (d *Docker) List(ctx context.Context, timeout time.Duration) ([]model.ContainerSample, error) {
	d.mu.Lock()
	if d.state == stateUnavailable {
		failure := d.failure
		d.mu.Unlock()
		return nil, failure
	}
	now := d.now()
	elapsed := now.Sub(d.last).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	d.last = now
	prev := d.prev
	d.mu.Unlock()

	if err := d.ping(ctx, timeout/4); err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, timeout/2)
	list, err := d.rt.ContainerList(listCtx, container.ListOptions{})
	cancel()
	if err != nil {
		return nil, classify(err, APIError)
	}
	if len(list) == 0 {
		d.storeCounters(make(map[string]ioCounters))
		return []model.ContainerSample{}, nil
	}

	stats := d.fetchStats(ctx, list, timeout/4)

	out := make([]model.ContainerSample, len(list))
	cur := make(map[string]ioCounters, len(list))
	for i, c := range list {
		out[i] = sample(c, stats[i], elapsed, prev, cur)
	}
	d.storeCounters(cur)
	return out, nil
}

func (d *Docker) storeCounters(cur map[string]ioCounters) {
	d.mu.Lock()
	d.prev = cur
	d.mu.Unlock()
}

func (d *Docker) ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := d.rt.Ping(ctx)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		e := classify(err, RuntimeUnreachable)
		if d.state == stateUninitialized && (e.Kind == RuntimeUnreachable || e.Kind == PermissionDenied) {
			d.log.Warn("docker unavailable", "error", err)
			d.state = stateUnavailable
			d.failure = e
		}
		return e
	}
	if d.state != stateUnavailable {
		d.state = stateConnected
	}
	return nil
}

// fetchStats returns one entry per container, nil where the fetch failed.
// Each goroutine writes only its own slot.
func (d *Docker) fetchStats(ctx context.Context, list []types.Container, timeout time.Duration) []*types.StatsJSON {
	out := make([]*types.StatsJSON, len(list))
	var g errgroup.Group
	g.SetLimit(statsConcurrency)
	for i, c := range list {
		g.Go(func() error {
			st, err := d.stats(ctx, c.ID, timeout)
			if err != nil {
				d.log.Debug("failed to get container stats", "id", shortID(c.ID), "error", err)
				return nil
			}
			out[i] = st
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (d *Docker) stats(ctx context.Context, id string, timeout time.Duration) (*types.StatsJSON, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := d.rt.ContainerStats(ctx, id, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var st types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func sample(c types.Container, st *types.StatsJSON, elapsed float64, prev, cur map[string]ioCounters) model.ContainerSample {
	s := model.ContainerSample{
		ID:        shortID(c.ID),
		Name:      containerName(c.Names),
		Status:    orUnknown(c.Status),
		Image:     orUnknown(c.Image),
		Ports:     formatPorts(c.Ports),
		CPU:       units.FormatPercent(0),
		Memory:    units.FormatSize(0),
		NetDown:   units.FormatRate(0),
		NetUp:     units.FormatRate(0),
		DiskRead:  units.FormatRate(0),
		DiskWrite: units.FormatRate(0),
	}
	if st == nil {
		return s
	}

	counters := countersOf(st)
	cur[c.ID] = counters
	if p, ok := prev[c.ID]; ok {
		s.NetRx = units.Rate(counters.netRx, p.netRx, elapsed)
		s.NetTx = units.Rate(counters.netTx, p.netTx, elapsed)
		s.BlockRead = units.Rate(counters.blkRead, p.blkRead, elapsed)
		s.BlockWrite = units.Rate(counters.blkWrite, p.blkWrite, elapsed)
	}
	s.CPUPercent = cpuPercent(st)
	s.MemUsage = st.MemoryStats.Usage

	s.CPU = units.FormatPercent(s.CPUPercent)
	s.Memory = units.FormatSize(s.MemUsage)
	s.NetDown = units.FormatRate(s.NetRx)
	s.NetUp = units.FormatRate(s.NetTx)
	s.DiskRead = units.FormatRate(s.BlockRead)
	s.DiskWrite = units.FormatRate(s.BlockWrite)
	return s
}

func countersOf(st *types.StatsJSON) ioCounters {
	var c ioCounters
	for _, n := range st.Networks {
		c.netRx += n.RxBytes
		c.netTx += n.TxBytes
	}
	for _, e := range st.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(e.Op) {
		case "read":
			c.blkRead += e.Value
		case "write":
			c.blkWrite += e.Value
		}
	}
	return c
}

// cpuPercent uses the daemon's own previous sample, not this monitor's.
func cpuPercent(st *types.StatsJSON) float64 {
	cpuDelta := units.SaturatingSub(st.CPUStats.CPUUsage.TotalUsage, st.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := units.SaturatingSub(st.CPUStats.SystemUsage, st.PreCPUStats.SystemUsage)
	if cpuDelta == 0 || sysDelta == 0 {
		return 0
	}
	online := float64(st.CPUStats.OnlineCPUs)
	if online == 0 {
		online = float64(len(st.CPUStats.CPUUsage.PercpuUsage))
	}
	if online == 0 {
		online = 1
	}
	return float64(cpuDelta) / float64(sysDelta) * online * 100
}

// Logs returns the last tail lines of a container's combined output.
func (d *Docker) Logs(ctx context.Context, id string, tail int) ([]string, error) {
	if err := d.Reason(); err != nil {
		return nil, err
	}
	if tail <= 0 {
		tail = DefaultLogTail
	}
	rc, err := d.rt.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return nil, classify(err, APIError)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, classify(err, APIError)
	}
	return splitLogs(raw), nil
}

// splitLogs demultiplexes stdout/stderr frames. Containers started with a TTY
// send a raw stream, which is used as is.
func splitLogs(raw []byte) []string {
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, bytes.NewReader(raw)); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	text := strings.TrimRight(buf.String(), "\n")
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}
