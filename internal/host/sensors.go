package host

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/sysfs"
)

var sensorKindOrder = map[string]int{
	model.SensorTemp:    0,
	model.SensorFan:     1,
	model.SensorVoltage: 2,
	model.SensorPower:   3,
	model.SensorCurrent: 4,
}

// hwmonKind describes one family of hwmon input files.
type hwmonKind struct {
	kind     string
	prefix   string
	suffixes []string
	divisor  float64
	unit     string
	noun     string
}

var hwmonKinds = []hwmonKind{
	{model.SensorFan, "fan", []string{"_input"}, 1, "RPM", "Fan"},
	{model.SensorVoltage, "in", []string{"_input"}, 1000, "V", "Voltage"},
	{model.SensorPower, "power", []string{"_input", "_average"}, 1e6, "W", "Power"},
	{model.SensorCurrent, "curr", []string{"_input"}, 1000, "A", "Current"},
}

// Sensors returns every temperature component plus fan, voltage, power and
// current readings found under hwmon, ordered by kind then label.
func (m *Monitor) Sensors() []model.SensorSample {
	out := make([]model.SensorSample, 0, len(m.components))
	for _, c := range m.components {
		s := model.SensorSample{
			Label: c.SensorKey,
			Chip:  componentChip(c.SensorKey),
			Kind:  model.SensorTemp,
			Value: c.Temperature,
			Unit:  "°C",
		}
		if c.High > 0 {
			v := c.High
			s.Max = &v
		}
		if c.Critical > 0 {
			v := c.Critical
			s.Critical = &v
		}
		out = append(out, s)
	}
	out = append(out, m.hwmonSensors()...)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := sensorKindOrder[out[i].Kind], sensorKindOrder[out[j].Kind]
		if oi != oj {
			return oi < oj
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func (m *Monitor) hwmonSensors() []model.SensorSample {
	root := m.path("class", "hwmon")
	dirs, err := os.ReadDir(root)
	if err != nil {
		m.log.Debug("failed to read hwmon", "path", root, "error", err)
		return nil
	}
	var out []model.SensorSample
	for _, d := range dirs {
		base := filepath.Join(root, d.Name())
		chip, _ := sysfs.ReadString(filepath.Join(base, "name"))
		files, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		powerSeen := make(map[string]bool)
		for _, f := range files {
			fname := f.Name()
			for _, k := range hwmonKinds {
				idx, ok := hwmonIndex(fname, k)
				if !ok {
					continue
				}
				label, err := sysfs.ReadString(filepath.Join(base, fmt.Sprintf("%s%s_label", k.prefix, idx)))
				if err != nil || label == "" {
					label = fmt.Sprintf("%s %s %s", chip, k.noun, idx)
				}
				if k.kind == model.SensorPower {
					if powerSeen[label] {
						continue
					}
				}
				raw, err := sysfs.ReadFloat(filepath.Join(base, fname))
				if err != nil {
					continue
				}
				if k.kind == model.SensorPower {
					powerSeen[label] = true
				}
				out = append(out, model.SensorSample{
					Label: label,
					Chip:  chip,
					Kind:  k.kind,
					Value: raw / k.divisor,
					Unit:  k.unit,
				})
			}
		}
	}
	return out
}

// hwmonIndex extracts N from names like fanN_input. The "in" prefix requires a
// digit immediately after it so "intrusion0_alarm" style files are skipped.
func hwmonIndex(fname string, k hwmonKind) (string, bool) {
	if !strings.HasPrefix(fname, k.prefix) {
		return "", false
	}
	for _, suf := range k.suffixes {
		if strings.HasSuffix(fname, suf) {
			idx := strings.TrimSuffix(strings.TrimPrefix(fname, k.prefix), suf)
			if allDigits(idx) {
				return idx, true
			}
		}
	}
	return "", false
}
