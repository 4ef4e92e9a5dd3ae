package gpu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/sysfs"
)

const nvidiaQuery = "--query-gpu=name,utilization.gpu,memory.used,memory.total,temperature.gpu,power.draw,clocks.gr,clocks.mem,fan.speed,driver_version"

// nvidia-smi can take a while to initialise the driver on the first call.
const nvidiaTimeout = 2 * time.Second

type runFunc func(ctx context.Context, name string, args ...string) (string, error)

// Nvidia queries nvidia-smi for one CSV line per device.
type Nvidia struct {
	log     logger.Logger
	sysRoot string
	run     runFunc
	lookup  func() (string, error)
}

func NewNvidia(log logger.Logger, sysRoot string) *Nvidia {
	return &Nvidia{log: log, sysRoot: sysRoot, run: sysfs.RunCmdContext, lookup: findNvidiaSMI}
}

func (n *Nvidia) Name() string { return "nvidia" }

func (n *Nvidia) Probe(ctx context.Context) ([]model.GpuSample, error) {
	path, err := n.lookup()
	if err != nil {
		// A card without the userspace tool is a backend error, not an absent GPU.
		if cards, _ := drmCards(n.sysRoot, vendorNVIDIA); len(cards) > 0 {
			return nil, fmt.Errorf("%d NVIDIA device(s) present: %w", len(cards), err)
		}
		return nil, ErrNoDevice
	}
	ctx, cancel := context.WithTimeout(ctx, nvidiaTimeout)
	defer cancel()
	out, err := n.run(ctx, path, nvidiaQuery, "--format=csv,noheader,nounits")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("nvidia-smi timed out after %s", nvidiaTimeout)
		}
		return nil, fmt.Errorf("nvidia-smi failed: %w: %s", err, strings.TrimSpace(out))
	}
	return parseNvidiaCSV(out), nil
}

// parseNvidiaCSV turns nvidia-smi output into samples. Lines with fewer than
// nine fields are skipped; unparsable fields such as "[N/A]" read as zero,
// and an unparsable fan speed is left absent.
func parseNvidiaCSV(out string) []model.GpuSample {
	var gpus []model.GpuSample
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 9 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		g := model.GpuSample{
			Vendor:   "NVIDIA",
			Name:     parts[0],
			Util:     parseFloat(parts[1]),
			MemUsed:  uint64(parseFloat(parts[2])) * 1024 * 1024,
			MemTotal: uint64(parseFloat(parts[3])) * 1024 * 1024,
			Temp:     parseFloat(parts[4]),
			Power:    parseFloat(parts[5]),
			ClockGfx: uint64(parseFloat(parts[6])),
			ClockMem: uint64(parseFloat(parts[7])),
			Driver:   "Unknown",
		}
		if fan, err := sysfs.ParseFloat(parts[8]); err == nil {
			g.Fan = &fan
		}
		if len(parts) > 9 && parts[9] != "" {
			g.Driver = parts[9]
		}
		gpus = append(gpus, g)
	}
	return gpus
}

func parseFloat(s string) float64 {
	f, err := sysfs.ParseFloat(s)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

var nvidiaSMIPaths = []string{
	"/usr/bin/nvidia-smi",
	"/usr/local/bin/nvidia-smi",
	"/opt/bin/nvidia-smi",
	"/usr/lib/wsl/lib/nvidia-smi",
}

func findNvidiaSMI() (string, error) {
	if p, err := exec.LookPath("nvidia-smi"); err == nil {
		return p, nil
	}
	for _, c := range nvidiaSMIPaths {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("nvidia-smi not found")
}
