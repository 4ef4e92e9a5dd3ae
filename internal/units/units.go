// Package units holds the pure helpers shared by every monitor: counter rates,
// percentage clamps and human-readable size/rate/duration formatting.
package units

import (
	"fmt"
	"strings"
	"time"
)

// Rate returns the per-second throughput between two absolute counter readings.
// A counter that went backwards (process restart, interface reset) yields 0.
func Rate(current, previous uint64, elapsed float64) uint64 {
	if elapsed <= 0 || current <= previous {
		return 0
	}
	return uint64(float64(current-previous) / elapsed)
}

// SaturatingSub returns a-b, or 0 when b > a.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// ClampPercent bounds v to [0, 100]. NaN maps to 0.
func ClampPercent(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// SafePercentage returns used/total as a percentage, 0 when total is 0.
func SafePercentage(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}

var (
	sizeUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}
	rateUnits = []string{"B/s", "KB/s", "MB/s", "GB/s", "TB/s"}
)

// FormatSize renders a byte count with binary prefixes: 1536 -> "1.5 KiB".
func FormatSize(bytes uint64) string {
	return scale(float64(bytes), 1024, sizeUnits)
}

// FormatRate renders a bytes-per-second value with decimal prefixes: 1000 -> "1.0 KB/s".
func FormatRate(bytesPerSec uint64) string {
	return scale(float64(bytesPerSec), 1000, rateUnits)
}

func scale(v, step float64, names []string) string {
	if v < step {
		return fmt.Sprintf("%d %s", uint64(v), names[0])
	}
	i := 0
	for v >= step && i < len(names)-1 {
		v /= step
		i++
	}
	return fmt.Sprintf("%.1f %s", v, names[i])
}

// FormatPercent renders a CPU share the way container and process tables show it.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// FormatDuration renders whole seconds as "1d 2h 3m 4s", dropping leading zero units.
func FormatDuration(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	mins := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// FormatUptime is the coarse form used in headers: "3 days, 04:05" or "04:05".
func FormatUptime(d time.Duration) string {
	total := uint64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	mins := (total % 3600) / 60
	var b strings.Builder
	switch {
	case days == 1:
		b.WriteString("1 day, ")
	case days > 1:
		fmt.Fprintf(&b, "%d days, ", days)
	}
	fmt.Fprintf(&b, "%02d:%02d", hours, mins)
	return b.String()
}
