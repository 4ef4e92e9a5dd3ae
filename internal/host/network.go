package host

import (
	"github.com/shirou/gopsutil/v3/net"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

// Networks returns per-interface throughput since the previous call.
func (m *Monitor) Networks() []model.NetworkSample {
	counters, err := net.IOCounters(true)
	if err != nil {
		m.log.Debug("failed to read network counters", "error", err)
		return nil
	}
	var up map[string]bool
	if ifaces, err := net.Interfaces(); err == nil {
		up = make(map[string]bool, len(ifaces))
		for _, iface := range ifaces {
			for _, f := range iface.Flags {
				if f == "up" {
					up[iface.Name] = true
				}
			}
		}
	} else {
		m.log.Debug("failed to read interface flags", "error", err)
	}
	return m.networkSamples(counters, up)
}

func (m *Monitor) networkSamples(counters []net.IOCountersStat, up map[string]bool) []model.NetworkSample {
	now := m.now()
	elapsed := elapsedSince(now, m.lastNet)
	m.lastNet = now

	next := make(map[string]net.IOCountersStat, len(counters))
	out := make([]model.NetworkSample, 0, len(counters))
	for _, c := range counters {
		s := model.NetworkSample{
			Name:      c.Name,
			TotalDown: c.BytesRecv,
			TotalUp:   c.BytesSent,
			PacketsRx: c.PacketsRecv,
			PacketsTx: c.PacketsSent,
			ErrorsRx:  c.Errin,
			ErrorsTx:  c.Errout,
			IsUp:      up == nil || up[c.Name],
		}
		if prev, ok := m.prevNet[c.Name]; ok {
			s.DownRate = units.Rate(c.BytesRecv, prev.BytesRecv, elapsed)
			s.UpRate = units.Rate(c.BytesSent, prev.BytesSent, elapsed)
		}
		next[c.Name] = c
		out = append(out, s)
	}
	m.prevNet = next
	return out
}
