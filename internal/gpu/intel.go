package gpu

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/sysfs"
)

// intelFreqPaths returns the i915/xe frequency attributes in priority order.
// Newer kernels move them under gt/gt0; older ones keep them on the card.
func intelFreqPaths(c drmCard) []string {
	return []string{
		filepath.Join(c.path, "gt", "gt0", "rps_act_freq_mhz"),
		filepath.Join(c.path, "gt", "gt0", "rps_cur_freq_mhz"),
		filepath.Join(c.path, "gt", "gt0", "gt_act_freq_mhz"),
		filepath.Join(c.path, "gt", "gt0", "gt_cur_freq_mhz"),
		filepath.Join(c.path, "gt_act_freq_mhz"),
		filepath.Join(c.path, "gt_cur_freq_mhz"),
		filepath.Join(c.device, "gt_act_freq_mhz"),
		filepath.Join(c.device, "gt_cur_freq_mhz"),
	}
}

// Intel reads i915/xe devices from the DRM sysfs tree. The kernel exposes no
// utilisation or VRAM counters there, so those stay zero.
type Intel struct {
	log     logger.Logger
	sysRoot string
	names   func(addr string) string
}

func NewIntel(log logger.Logger, sysRoot string, names func(string) string) *Intel {
	return &Intel{log: log, sysRoot: sysRoot, names: names}
}

func (i *Intel) Name() string { return "intel" }

func (i *Intel) Probe(ctx context.Context) ([]model.GpuSample, error) {
	cards, err := drmCards(i.sysRoot, vendorIntel)
	if err != nil {
		return nil, ErrNoDevice
	}
	out := make([]model.GpuSample, 0, len(cards))
	for _, c := range cards {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g := model.GpuSample{
			Vendor: "Intel",
			Name:   i.name(c),
			Temp:   c.temp(),
			Power:  c.power(),
			Driver: "i915",
		}
		if mhz, path, err := sysfs.FirstNonZero(intelFreqPaths(c)...); err == nil {
			g.ClockGfx = mhz
			i.log.Debug("intel frequency source", "card", c.name, "path", path)
		}
		if drv, err := filepath.EvalSymlinks(filepath.Join(c.device, "driver")); err == nil {
			g.Driver = filepath.Base(drv)
		}
		out = append(out, g)
	}
	return out, nil
}

func (i *Intel) name(c drmCard) string {
	if i.names != nil {
		if v := i.names(c.pciAddress()); v != "" {
			return v
		}
	}
	if id, err := sysfs.ReadString(filepath.Join(c.device, "device")); err == nil && id != "" {
		return fmt.Sprintf("Intel Graphics (%s)", id)
	}
	return fmt.Sprintf("Intel GPU (%s)", c.name)
}
