package host

import (
	"os/user"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

type procCounters struct {
	read  uint64
	write uint64
	cpu   float64 // user+system seconds
}

// procReading is one raw process table entry before rates are applied.
type procReading struct {
	pid      int32
	name     string
	user     string
	status   string
	cpuTime  float64
	lifetime float64 // lifetime CPU percent, used when no previous sample exists
	rss      uint64
	read     uint64
	write    uint64
	hasIO    bool
}

var systemPrefixes = []string{
	"kthreadd", "migration", "rcu_", "watchdog", "systemd", "kernel", "kworker",
	"ksoftirqd", "init", "swapper", "[", "dbus", "NetworkManager", "systemd-",
}

// IsSystemProcess is the default name-prefix heuristic for kernel threads and
// core system daemons. It is approximate; see WithSystemPredicate.
func IsSystemProcess(name string) bool {
	for _, p := range systemPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// MatchesFilter is a case-insensitive substring match. An empty filter matches everything.
func MatchesFilter(text, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(filter))
}

// Processes enumerates the process table. Disk rates are computed against the
// previous call; a pid seen for the first time reports zero.
func (m *Monitor) Processes(includeSystem bool, filter string) []model.ProcessSample {
	procs, err := process.Processes()
	if err != nil {
		m.log.Warn("failed to list processes", "error", err)
	}
	readings := make([]procReading, 0, len(procs))
	for _, p := range procs {
		if r, ok := m.readProcess(p); ok {
			readings = append(readings, r)
		}
	}
	return m.processSamples(readings, includeSystem, filter)
}

func (m *Monitor) readProcess(p *process.Process) (procReading, bool) {
	name, err := p.Name()
	if err != nil {
		// exited between listing and reading
		return procReading{}, false
	}
	r := procReading{pid: p.Pid, name: name, user: "N/A"}
	if st, err := p.Status(); err == nil && len(st) > 0 {
		r.status = st[0]
	}
	if t, err := p.Times(); err == nil && t != nil {
		r.cpuTime = t.User + t.System
	}
	if _, seen := m.prevProc[p.Pid]; !seen {
		r.lifetime, _ = p.CPUPercent()
	}
	if mi, err := p.MemoryInfo(); err == nil && mi != nil {
		r.rss = mi.RSS
	}
	if io, err := p.IOCounters(); err == nil && io != nil {
		r.read, r.write, r.hasIO = io.ReadBytes, io.WriteBytes, true
	}
	if uids, err := p.Uids(); err == nil && len(uids) > 0 {
		r.user = m.username(uint32(uids[0]))
	}
	return r, true
}

func (m *Monitor) username(uid uint32) string {
	if name, ok := m.userCache[uid]; ok {
		return name
	}
	name := "N/A"
	if u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil {
		name = u.Username
	}
	m.userCache[uid] = name
	return name
}

func (m *Monitor) processSamples(readings []procReading, includeSystem bool, filter string) []model.ProcessSample {
	now := m.now()
	elapsed := elapsedSince(now, m.lastProc)
	m.lastProc = now
	cores := float64(m.logical)
	if cores < 1 {
		cores = 1
	}

	next := make(map[int32]procCounters, len(readings))
	out := make([]model.ProcessSample, 0, len(readings))
	for _, r := range readings {
		prev, seen := m.prevProc[r.pid]
		next[r.pid] = procCounters{read: r.read, write: r.write, cpu: r.cpuTime}

		if !includeSystem && m.isSystem(r.name) {
			continue
		}
		if filter != "" && !MatchesFilter(r.name+" "+strconv.Itoa(int(r.pid)), filter) {
			continue
		}

		var raw float64
		if seen {
			if d := r.cpuTime - prev.cpu; d > 0 {
				raw = d / elapsed * 100
			}
		} else {
			raw = r.lifetime
		}
		cpuPct := units.ClampPercent(raw / cores)

		var rd, wr uint64
		if seen && r.hasIO {
			rd = units.Rate(r.read, prev.read, elapsed)
			wr = units.Rate(r.write, prev.write, elapsed)
		}

		status := normalizeStatus(r.status)
		if m.activity && (cpuPct > 0 || r.pid == m.selfPID) {
			status = "Running"
		}

		out = append(out, model.ProcessSample{
			PID:       r.pid,
			Name:      r.name,
			User:      r.user,
			CPU:       cpuPct,
			Memory:    r.rss,
			DiskRead:  rd,
			DiskWrite: wr,
			Status:    status,
		})
	}
	m.prevProc = next
	return out
}

func normalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running", "r":
		return "Running"
	case "sleep", "sleeping", "s":
		return "Sleeping"
	case "disk-sleep", "d", "wait", "w":
		return "Waiting"
	case "idle", "i":
		return "Idle"
	case "stop", "stopped", "t":
		return "Stopped"
	case "zombie", "z":
		return "Zombie"
	case "dead", "x":
		return "Dead"
	case "lock", "l":
		return "Locked"
	case "":
		return "Unknown"
	default:
		return raw
	}
}
