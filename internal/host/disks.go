package host

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/sysfs"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

type diskMeta struct {
	model string
	ssd   bool
	known bool
}

// BaseDevice maps a partition to its whole-disk block device:
// nvme0n1p2 -> nvme0n1, sda3 -> sda. Paths like /dev/sda1 are accepted.
func BaseDevice(dev string) string {
	name := filepath.Base(dev)
	if strings.Contains(name, "nvme") || strings.HasPrefix(name, "mmcblk") {
		if i := strings.LastIndexByte(name, 'p'); i > 0 && i+1 < len(name) && allDigits(name[i+1:]) {
			return name[:i]
		}
		return name
	}
	return strings.TrimRight(name, "0123456789")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Disks lists mounted physical filesystems with capacity, throughput and any
// health attributes the block device exposes.
func (m *Monitor) Disks() []model.DiskSample {
	parts, err := disk.Partitions(false)
	if err != nil {
		m.log.Debug("failed to list partitions", "error", err)
		return nil
	}
	counters, err := disk.IOCounters()
	if err != nil {
		m.log.Debug("failed to read disk io counters", "error", err)
	}
	now := m.now()
	elapsed := elapsedSince(now, m.lastDisk)
	m.lastDisk = now
	meta := m.diskMeta()

	seen := make(map[string]bool, len(parts))
	out := make([]model.DiskSample, 0, len(parts))
	for _, p := range parts {
		if p.Mountpoint == "" || seen[p.Mountpoint] {
			continue
		}
		seen[p.Mountpoint] = true
		usage, err := disk.Usage(p.Mountpoint)
		if err != nil {
			m.log.Debug("failed to read disk usage", "mount", p.Mountpoint, "error", err)
			continue
		}
		name := filepath.Base(p.Device)
		base := BaseDevice(p.Device)
		s := model.DiskSample{
			Mount:  p.Mountpoint,
			Device: p.Device,
			FS:     p.Fstype,
			Total:  usage.Total,
			Free:   usage.Free,
			Used:   units.SaturatingSub(usage.Total, usage.Free),
			IsNVMe: strings.HasPrefix(base, "nvme"),
		}
		if st, ok := counters[name]; ok {
			if prev, ok := m.prevDisk[name]; ok {
				s.ReadRate = units.Rate(st.ReadBytes, prev.ReadBytes, elapsed)
				s.WriteRate = units.Rate(st.WriteBytes, prev.WriteBytes, elapsed)
			}
		}
		if md, ok := meta[base]; ok {
			s.Model = md.model
			if md.known {
				ssd := md.ssd
				s.IsSSD = &ssd
			}
		}
		m.blockAttributes(base, &s)
		s.Temp = m.diskTemp(name, base)
		out = append(out, s)
	}
	m.prevDisk = counters
	if m.prevDisk == nil {
		m.prevDisk = make(map[string]disk.IOCountersStat)
	}
	return out
}

// blockAttributes fills rotational and NVMe health fields from /sys/block.
func (m *Monitor) blockAttributes(base string, s *model.DiskSample) {
	dir := m.path("block", base)
	if rot, err := sysfs.ReadUint(filepath.Join(dir, "queue", "rotational")); err == nil {
		ssd := rot == 0
		s.IsSSD = &ssd
	}
	if !s.IsNVMe {
		return
	}
	if used, err := sysfs.ReadUint(filepath.Join(dir, "device", "percentage_used")); err == nil {
		h := uint8(100 - min(used, 100))
		s.HealthPct = &h
	}
	if pc, err := sysfs.ReadUint(filepath.Join(dir, "device", "power_cycles")); err == nil {
		s.PowerCycles = &pc
	}
}

// diskTemp resolves a drive temperature: a sensor label naming the device,
// then an nvme hwmon chip, then the block device's own hwmon directory.
func (m *Monitor) diskTemp(name, base string) *float64 {
	return firstTemp(
		func() *float64 {
			return m.componentTemp(func(label string) bool {
				return name != "" && (strings.Contains(label, name) || strings.Contains(label, base))
			})
		},
		func() *float64 {
			if !strings.HasPrefix(base, "nvme") {
				return nil
			}
			return m.hwmonTemp(func(chip string) bool { return chip == "nvme" })
		},
		func() *float64 { return m.blockHwmonTemp(base) },
	)
}

func (m *Monitor) blockHwmonTemp(base string) *float64 {
	root := m.path("block", base, "device", "hwmon")
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, d := range dirs {
		if milli, err := sysfs.ReadFloat(filepath.Join(root, d.Name(), "temp1_input")); err == nil {
			v := milli / 1000
			return &v
		}
	}
	return nil
}

// diskMeta reads drive model and type once through ghw.
func (m *Monitor) diskMeta() map[string]diskMeta {
	if m.diskModels != nil {
		return m.diskModels
	}
	m.diskModels = make(map[string]diskMeta)
	info, err := ghw.Block()
	if err != nil {
		m.log.Debug("failed to read block device metadata", "error", err)
		return m.diskModels
	}
	for _, d := range info.Disks {
		if d == nil {
			continue
		}
		dt := strings.ToLower(d.DriveType.String())
		m.diskModels[d.Name] = diskMeta{
			model: strings.Join(strings.Fields(d.Vendor+" "+d.Model), " "),
			ssd:   dt == "ssd",
			known: dt == "ssd" || dt == "hdd",
		}
	}
	return m.diskModels
}
