package host

import (
	"bufio"
	"os"
	"strings"
	"time"

	gohost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/sysfs"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

type memoryDetails struct {
	kind  string
	gen   string
	speed string
}

// Global returns host-wide CPU, memory, swap, load and uptime figures. The
// aggregate I/O rates and GPU utilisation are supplied by the caller, which
// derives them from the per-entity samples of the same cycle.
func (m *Monitor) Global(netDown, netUp, diskRead, diskWrite uint64, gpuUtil *float64) model.GlobalUsage {
	g := model.GlobalUsage{
		CPU:       m.totalCPU(),
		GPUUtil:   gpuUtil,
		NetDown:   netDown,
		NetUp:     netUp,
		DiskRead:  diskRead,
		DiskWrite: diskWrite,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		g.MemUsed = vm.Used
		g.MemTotal = vm.Total
		g.MemCached = units.SaturatingSub(vm.Available, vm.Free)
	} else {
		m.log.Debug("failed to read memory", "error", err)
	}
	if sw, err := mem.SwapMemory(); err == nil {
		g.SwapUsed = sw.Used
		g.SwapTotal = sw.Total
	} else {
		m.log.Debug("failed to read swap", "error", err)
	}
	if avg, err := load.Avg(); err == nil {
		g.Load = model.LoadAverage{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	}
	if boot, err := gohost.BootTime(); err == nil && boot > 0 {
		g.BootTime = boot
		g.Uptime = units.SaturatingSub(uint64(m.now().Unix()), boot)
	}
	d := m.memoryDetails()
	g.MemoryType, g.MemoryGen, g.MemorySpd = d.kind, d.gen, d.speed
	g.MemoryTemp = m.memoryTemp()
	return g
}

// memoryDetails is read once: dmidecode when running as root, then a board
// name heuristic for the generation. The result never changes for a running host.
func (m *Monitor) memoryDetails() memoryDetails {
	if m.mem != nil {
		return *m.mem
	}
	d := memoryDetails{kind: "N/A", gen: "N/A", speed: "N/A"}
	if os.Geteuid() == 0 {
		out, err := sysfs.RunCmd(2*time.Second, "dmidecode", "-t", "memory")
		if err == nil {
			d.kind, d.speed = parseDMIMemory(out)
		} else {
			m.log.Debug("dmidecode failed", "error", err)
		}
	}
	if strings.HasPrefix(d.kind, "DDR") || strings.HasPrefix(d.kind, "LPDDR") {
		d.gen = d.kind
	} else if board, err := sysfs.ReadString(m.path("class", "dmi", "id", "board_name")); err == nil {
		d.gen = generationFromBoard(board)
	}
	m.mem = &d
	return d
}

// parseDMIMemory pulls the first populated Type and Speed out of dmidecode output.
func parseDMIMemory(out string) (kind, speed string) {
	kind, speed = "N/A", "N/A"
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Type:") && kind == "N/A":
			v := strings.TrimSpace(strings.TrimPrefix(line, "Type:"))
			if v != "" && v != "Unknown" && v != "Other" {
				kind = v
			}
		case strings.HasPrefix(line, "Speed:") && speed == "N/A":
			v := strings.TrimSpace(strings.TrimPrefix(line, "Speed:"))
			if v != "" && !strings.Contains(v, "Unknown") {
				speed = v
			}
		}
	}
	return kind, speed
}

func generationFromBoard(board string) string {
	b := strings.ToLower(board)
	switch {
	case strings.Contains(b, "adl") || strings.Contains(b, "raptor"):
		return "DDR5"
	case strings.Contains(b, "tgl") || strings.Contains(b, "cml"):
		return "DDR4"
	default:
		return "N/A"
	}
}

// TotalMemory is used for the general sort score.
func (m *Monitor) TotalMemory() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.Total
}
