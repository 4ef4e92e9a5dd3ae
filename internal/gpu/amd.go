package gpu

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/sysfs"
)

// Utilisation attribute names relative to the card's device directory, in
// the order amdgpu kernels introduced them.
var amdUtilCandidates = []string{
	"gpu_busy_percent",
	"busy_percent",
	"device/gpu_busy_percent",
	"device/load",
}

// AMD reads amdgpu devices from the DRM sysfs tree.
type AMD struct {
	log     logger.Logger
	sysRoot string
	names   func(addr string) string
}

func NewAMD(log logger.Logger, sysRoot string, names func(string) string) *AMD {
	return &AMD{log: log, sysRoot: sysRoot, names: names}
}

func (a *AMD) Name() string { return "amd" }

func (a *AMD) Probe(ctx context.Context) ([]model.GpuSample, error) {
	cards, err := drmCards(a.sysRoot, vendorAMD)
	if err != nil {
		return nil, ErrNoDevice
	}
	out := make([]model.GpuSample, 0, len(cards))
	for _, c := range cards {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out = append(out, a.read(c))
	}
	return out, nil
}

func (a *AMD) read(c drmCard) model.GpuSample {
	g := model.GpuSample{
		Vendor: "AMD",
		Name:   a.name(c),
		Temp:   c.temp(),
		Power:  c.power(),
		Driver: "amdgpu",
	}
	if v, path, err := sysfs.FirstFloat(joinAll(c.device, amdUtilCandidates)...); err == nil {
		g.Util = clampUtil(v)
		a.log.Debug("amd utilisation source", "card", c.name, "path", path)
	}
	g.MemUsed, _ = sysfs.ReadUint(filepath.Join(c.device, "mem_info_vram_used"))
	g.MemTotal, _ = sysfs.ReadUint(filepath.Join(c.device, "mem_info_vram_total"))

	g.ClockGfx = firstClock(
		func() (uint64, bool) { return activeDPMClock(filepath.Join(c.device, "pp_dpm_sclk")) },
		func() (uint64, bool) { return hwmonClock(c, "freq1_input") },
	)
	g.ClockMem = firstClock(
		func() (uint64, bool) { return activeDPMClock(filepath.Join(c.device, "pp_dpm_mclk")) },
		func() (uint64, bool) { return hwmonClock(c, "freq2_input") },
	)
	if g.ClockGfx == 0 {
		g.ClockGfx, _ = hwmonClock(c, "freq0_input")
	}
	if pwm, ok := c.hwmonFile("pwm1"); ok {
		fan := pwm / 255 * 100
		g.Fan = &fan
	}
	return g
}

// name tries product_name, product_number, the PCI database name, the raw
// device id, then a generic label.
func (a *AMD) name(c drmCard) string {
	if v, _, err := sysfs.FirstString(
		filepath.Join(c.device, "product_name"),
		filepath.Join(c.device, "product_number"),
	); err == nil {
		return v
	}
	if a.names != nil {
		if v := a.names(c.pciAddress()); v != "" {
			return v
		}
	}
	if v, err := sysfs.ReadString(filepath.Join(c.device, "device")); err == nil && v != "" {
		return v
	}
	return fmt.Sprintf("AMD GPU (%s)", c.name)
}

// activeDPMClock reads the line marked with '*' in a pp_dpm_* table:
//
//	0: 500Mhz
//	1: 1800Mhz *
func activeDPMClock(path string) (uint64, bool) {
	body, err := sysfs.ReadString(path)
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(body, "\n") {
		if !strings.Contains(line, "*") {
			continue
		}
		for _, f := range strings.Fields(line) {
			lower := strings.ToLower(f)
			if strings.HasSuffix(lower, "mhz") {
				if v, err := strconv.ParseUint(f[:len(f)-3], 10, 64); err == nil {
					return v, true
				}
			}
		}
	}
	return 0, false
}

// hwmonClock reads a frequency in Hz from the card's hwmon and converts to MHz.
func hwmonClock(c drmCard, name string) (uint64, bool) {
	hz, ok := c.hwmonFile(name)
	if !ok || hz <= 0 {
		return 0, false
	}
	return uint64(hz / 1e6), true
}

func firstClock(probes ...func() (uint64, bool)) uint64 {
	for _, p := range probes {
		if v, ok := p(); ok && v > 0 {
			return v
		}
	}
	return 0
}

func joinAll(base string, rel []string) []string {
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(base, r)
	}
	return out
}

func clampUtil(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
