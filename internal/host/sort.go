package host

import (
	"sort"
	"strings"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
)

// SortKey selects the process table ordering.
type SortKey string

const (
	SortCPU       SortKey = "cpu"
	SortMemory    SortKey = "memory"
	SortName      SortKey = "name"
	SortPID       SortKey = "pid"
	SortDiskRead  SortKey = "disk-read"
	SortDiskWrite SortKey = "disk-write"
	SortGeneral   SortKey = "general"
)

// SortKeys lists every key in the order the UI cycles through them.
var SortKeys = []SortKey{SortCPU, SortMemory, SortName, SortPID, SortDiskRead, SortDiskWrite, SortGeneral}

// ParseSortKey accepts the key names plus a few short aliases. Unknown input maps to cpu.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mem", "memory":
		return SortMemory
	case "name":
		return SortName
	case "pid":
		return SortPID
	case "read", "disk-read", "diskread":
		return SortDiskRead
	case "write", "disk-write", "diskwrite":
		return SortDiskWrite
	case "general", "score":
		return SortGeneral
	default:
		return SortCPU
	}
}

// Next returns the key after k in SortKeys, wrapping around.
func (k SortKey) Next() SortKey {
	for i, v := range SortKeys {
		if v == k {
			return SortKeys[(i+1)%len(SortKeys)]
		}
	}
	return SortCPU
}

// Sort orders procs in place. Equal elements keep their input order.
// totalMemory feeds the general score (cpu + memory percent).
func Sort(procs []model.ProcessSample, key SortKey, ascending bool, totalMemory uint64) {
	less := lessFunc(procs, key, totalMemory)
	sort.SliceStable(procs, func(i, j int) bool {
		if ascending {
			return less(i, j)
		}
		return less(j, i)
	})
}

func lessFunc(p []model.ProcessSample, key SortKey, totalMemory uint64) func(i, j int) bool {
	switch key {
	case SortMemory:
		return func(i, j int) bool { return p[i].Memory < p[j].Memory }
	case SortName:
		return func(i, j int) bool { return p[i].Name < p[j].Name }
	case SortPID:
		return func(i, j int) bool { return p[i].PID < p[j].PID }
	case SortDiskRead:
		return func(i, j int) bool { return p[i].DiskRead < p[j].DiskRead }
	case SortDiskWrite:
		return func(i, j int) bool { return p[i].DiskWrite < p[j].DiskWrite }
	case SortGeneral:
		score := func(s model.ProcessSample) float64 {
			if totalMemory == 0 {
				return s.CPU
			}
			return s.CPU + float64(s.Memory)/float64(totalMemory)*100
		}
		return func(i, j int) bool { return score(p[i]) < score(p[j]) }
	default:
		return func(i, j int) bool { return p[i].CPU < p[j].CPU }
	}
}
