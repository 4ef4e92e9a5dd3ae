package host

import (
	"path/filepath"
	"testing"

	gohost "github.com/shirou/gopsutil/v3/host"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
)

func TestSensorsScan(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.components = []gohost.TemperatureStat{
		{SensorKey: "k10temp_tctl", Temperature: 55, Critical: 95},
	}
	dir := m.path("class", "hwmon", "hwmon2")
	writeFile(t, filepath.Join(dir, "name"), "nct6775\n")
	writeFile(t, filepath.Join(dir, "fan1_input"), "1200\n")
	writeFile(t, filepath.Join(dir, "fan1_label"), "CPU Fan\n")
	writeFile(t, filepath.Join(dir, "fan2_input"), "800\n")
	writeFile(t, filepath.Join(dir, "in0_input"), "1200\n")
	writeFile(t, filepath.Join(dir, "intrusion0_alarm"), "0\n")
	writeFile(t, filepath.Join(dir, "power1_input"), "15000000\n")
	writeFile(t, filepath.Join(dir, "power1_average"), "14000000\n")
	writeFile(t, filepath.Join(dir, "curr1_input"), "2500\n")

	got := m.Sensors()
	want := []struct {
		kind, label string
		value       float64
		unit        string
	}{
		{model.SensorTemp, "k10temp_tctl", 55, "°C"},
		{model.SensorFan, "CPU Fan", 1200, "RPM"},
		{model.SensorFan, "nct6775 Fan 2", 800, "RPM"},
		{model.SensorVoltage, "nct6775 Voltage 0", 1.2, "V"},
		{model.SensorPower, "nct6775 Power 1", 14, "W"},
		{model.SensorCurrent, "nct6775 Current 1", 2.5, "A"},
	}
	if len(got) != len(want) {
		t.Fatalf("Sensors() returned %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.Kind != w.kind || g.Label != w.label || g.Value != w.value || g.Unit != w.unit {
			t.Errorf("Sensors()[%d] = %+v, want %+v", i, g, w)
		}
	}
	if got[0].Critical == nil || *got[0].Critical != 95 {
		t.Error("critical threshold not carried over")
	}
	if got[0].Max != nil {
		t.Error("zero high threshold reported as max")
	}
}
