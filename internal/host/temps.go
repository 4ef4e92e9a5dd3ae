package host

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/sysfs"
)

// Package-level CPU markers: AMD tctl/tdie, Intel "package id".
var cpuPackageMarkers = []string{"tctl", "package", "tdie"}

// hwmon chip names that expose a CPU temperature on temp1_input.
var cpuHwmonChips = []string{"k10temp", "coretemp", "k8temp", "zenpower"}

var gpuTempMarkers = []string{"gpu", "radeon", "amdgpu", "edge", "junction"}

var memTempMarkers = []string{"dimm", "dram", "memory"}

// tempProbe is one strategy in an ordered temperature fallback chain.
type tempProbe func() *float64

func firstTemp(chain ...tempProbe) *float64 {
	for _, probe := range chain {
		if v := probe(); v != nil {
			return v
		}
	}
	return nil
}

// cpuTemp resolves the package temperature: package markers, then core 0,
// then a known hwmon chip, else absent.
func (m *Monitor) cpuTemp() *float64 {
	return firstTemp(
		func() *float64 { return m.componentTemp(containsAny(cpuPackageMarkers...)) },
		func() *float64 { return m.coreTemp(0) },
		m.cpuTempFromHwmon,
	)
}

func (m *Monitor) coreTemp(i int) *float64 {
	return m.componentTemp(func(label string) bool { return hasCoreIndex(label, i) })
}

func (m *Monitor) componentTemp(match func(label string) bool) *float64 {
	for _, c := range m.components {
		if c.Temperature <= 0 {
			continue
		}
		if match(componentLabel(c.SensorKey)) {
			v := c.Temperature
			return &v
		}
	}
	return nil
}

func containsAny(markers ...string) func(string) bool {
	return func(label string) bool {
		for _, mk := range markers {
			if strings.Contains(label, mk) {
				return true
			}
		}
		return false
	}
}

// hasCoreIndex reports whether label names "core <i>" as a whole word, so
// core 1 does not match core 10.
func hasCoreIndex(label string, i int) bool {
	needle := "core " + strconv.Itoa(i)
	for off := 0; ; {
		idx := strings.Index(label[off:], needle)
		if idx < 0 {
			return false
		}
		end := off + idx + len(needle)
		if end == len(label) || label[end] < '0' || label[end] > '9' {
			return true
		}
		off = end
	}
}

func (m *Monitor) cpuTempFromHwmon() *float64 {
	return m.hwmonTemp(func(chip string) bool {
		for _, c := range cpuHwmonChips {
			if chip == c {
				return true
			}
		}
		return false
	})
}

// hwmonTemp returns temp1_input of the first hwmon chip whose name matches.
func (m *Monitor) hwmonTemp(match func(chip string) bool) *float64 {
	dirs, err := os.ReadDir(m.path("class", "hwmon"))
	if err != nil {
		m.log.Debug("failed to read hwmon", "path", m.path("class", "hwmon"), "error", err)
		return nil
	}
	for _, d := range dirs {
		base := m.path("class", "hwmon", d.Name())
		chip, err := sysfs.ReadString(filepath.Join(base, "name"))
		if err != nil || !match(strings.ToLower(chip)) {
			continue
		}
		if milli, err := sysfs.ReadFloat(filepath.Join(base, "temp1_input")); err == nil {
			v := milli / 1000
			return &v
		}
	}
	return nil
}

// Temperatures returns the headline CPU and GPU readings.
func (m *Monitor) Temperatures() model.Temperatures {
	var gpus []float64
	match := containsAny(gpuTempMarkers...)
	for _, c := range m.components {
		if c.Temperature > 0 && match(componentLabel(c.SensorKey)) {
			gpus = append(gpus, c.Temperature)
		}
	}
	return model.Temperatures{
		CPU:  m.cpuTemp(),
		GPUs: gpus,
	}
}

func (m *Monitor) memoryTemp() *float64 {
	return m.componentTemp(containsAny(memTempMarkers...))
}
