package host

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/sysfs"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

// totalCPU is the busy share of all cores since the previous call.
func (m *Monitor) totalCPU() float64 {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		m.log.Debug("failed to read cpu times", "error", err)
		return 0
	}
	cur := times[0]
	curTotal := cur.Total()
	curIdle := cur.Idle + cur.Iowait
	var total float64
	if m.prevTotal > 0 {
		dt := curTotal - m.prevTotal
		di := curIdle - m.prevIdle
		if dt > 0 {
			total = 100 * (1 - di/dt)
		}
	}
	m.prevTotal, m.prevIdle = curTotal, curIdle
	return units.ClampPercent(total)
}

// coreUsage computes per-core busy percentages from two cpu.Times(true) readings.
// Cores without a previous reading report 0.
func coreUsage(prev, cur []cpu.TimesStat) []float64 {
	out := make([]float64, len(cur))
	for i, c := range cur {
		if i >= len(prev) {
			continue
		}
		p := prev[i]
		dt := c.Total() - p.Total()
		di := (c.Idle + c.Iowait) - (p.Idle + p.Iowait)
		if dt > 0 {
			out[i] = units.ClampPercent(100 * (1 - di/dt))
		}
	}
	return out
}

// Cores returns usage, frequency and temperature per logical core.
func (m *Monitor) Cores() []model.CoreSample {
	times, err := cpu.Times(true)
	if err != nil {
		m.log.Debug("failed to read per-core cpu times", "error", err)
		return nil
	}
	usage := coreUsage(m.prevCore, times)
	m.prevCore = times

	global := m.cpuTemp()
	var infos []cpu.InfoStat
	out := make([]model.CoreSample, len(times))
	for i := range times {
		freq, ferr := m.coreFreq(i)
		if ferr != nil {
			if infos == nil {
				infos, _ = cpu.Info()
			}
			if i < len(infos) {
				freq = uint64(infos[i].Mhz)
			}
		}
		temp := m.coreTemp(i)
		if temp == nil {
			temp = global
		}
		out[i] = model.CoreSample{Usage: usage[i], FreqMHz: freq, Temp: temp}
	}
	return out
}

// coreFreq reads the current scaling frequency in MHz from cpufreq.
func (m *Monitor) coreFreq(i int) (uint64, error) {
	base := m.path("devices", "system", "cpu", fmt.Sprintf("cpu%d", i), "cpufreq")
	khz, _, err := sysfs.FirstNonZero(
		base+"/scaling_cur_freq",
		base+"/cpuinfo_cur_freq",
	)
	if err != nil {
		return 0, err
	}
	return khz / 1000, nil
}
