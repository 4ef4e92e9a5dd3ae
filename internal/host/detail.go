package host

import (
	"fmt"
	"strings"
	"time"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	gohost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

const timeLayout = "2006-01-02 15:04:05"

// Detailed reads the expanded record for one pid from /proc. Fields the
// caller may not read (environ, cwd, fd of another user) are left empty.
// CPU is the lifetime average scaled to the whole machine; Collect replaces
// it with the cycle's rate when the pid is in the table.
func (m *Monitor) Detailed(pid int32) (*model.DetailedProcess, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}
	name, err := p.Name()
	if err != nil {
		return nil, fmt.Errorf("process %d name: %w", pid, err)
	}
	d := &model.DetailedProcess{PID: pid, Name: name, User: "N/A", StartTime: "Invalid time"}
	if u, err := p.Username(); err == nil {
		d.User = u
	}
	if st, err := p.Status(); err == nil && len(st) > 0 {
		d.Status = normalizeStatus(st[0])
	}
	if c, err := p.CPUPercent(); err == nil {
		d.CPU = units.ClampPercent(c / float64(max(m.logical, 1)))
	}
	if mi, err := p.MemoryInfo(); err == nil && mi != nil {
		d.RSS, d.VMS = mi.RSS, mi.VMS
	}
	if cmd, err := p.Cmdline(); err == nil {
		d.Command = cmd
	}
	if ct, err := p.CreateTime(); err == nil && ct > 0 {
		d.StartTime = time.UnixMilli(ct).Local().Format(timeLayout)
	}
	if ppid, err := p.Ppid(); err == nil {
		d.Parent = &ppid
	}
	if env, err := p.Environ(); err == nil {
		d.Environ = env
	}
	if n, err := p.NumThreads(); err == nil {
		d.Threads = n
	}
	if n, err := p.NumFDs(); err == nil {
		d.FDs = &n
	}
	if cwd, err := p.Cwd(); err == nil {
		d.Cwd = cwd
	}
	return d, nil
}

// SystemInfo returns static host facts. Feature availability is filled in by
// the collector, which owns the optional subsystems.
func (m *Monitor) SystemInfo() model.SystemInfo {
	info := model.SystemInfo{
		BootTime:     "Unknown",
		Uptime:       "Unknown",
		LogicalCores: m.logical,
		CPUModel:     "N/A",
	}
	if hi, err := gohost.Info(); err == nil {
		info.OS = strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion)
		info.Kernel = hi.KernelVersion
		info.Hostname = hi.Hostname
		if hi.BootTime > 0 {
			info.BootTime = time.Unix(int64(hi.BootTime), 0).Local().Format(timeLayout)
			info.Uptime = units.FormatDuration(units.SaturatingSub(uint64(m.now().Unix()), hi.BootTime))
		}
	} else {
		m.log.Debug("failed to read host info", "error", err)
	}
	if ci, err := cpu.Info(); err == nil && len(ci) > 0 {
		info.CPUModel = ci[0].ModelName
	}
	if n, err := cpu.Counts(false); err == nil {
		info.PhysicalCores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	}
	if avg, err := load.Avg(); err == nil {
		info.Load = model.LoadAverage{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	}
	if mi, err := ghw.Memory(); err == nil {
		for _, mod := range mi.Modules {
			if mod == nil {
				continue
			}
			desc := strings.TrimSpace(mod.Vendor)
			if mod.SizeBytes > 0 {
				desc = strings.TrimSpace(desc + " " + units.FormatSize(uint64(mod.SizeBytes)))
			}
			if desc != "" {
				info.MemoryModules = append(info.MemoryModules, desc)
			}
		}
	} else {
		m.log.Debug("failed to read memory modules", "error", err)
	}
	return info
}
