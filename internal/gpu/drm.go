package gpu

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jaypipes/ghw"

	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/sysfs"
)

const (
	vendorAMD    = "0x1002"
	vendorNVIDIA = "0x10de"
	vendorIntel  = "0x8086"
)

// drmCard is one /sys/class/drm/cardN entry. Connector entries such as
// card0-HDMI-A-1 are not cards.
type drmCard struct {
	name   string // card0
	path   string // <root>/class/drm/card0
	device string // <root>/class/drm/card0/device
}

func isCardName(name string) bool {
	return strings.HasPrefix(name, "card") && !strings.Contains(name, "-")
}

// drmCards lists the cards whose PCI vendor matches vendor.
func drmCards(sysRoot, vendor string) ([]drmCard, error) {
	root := filepath.Join(sysRoot, "class", "drm")
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var cards []drmCard
	for _, e := range entries {
		if !isCardName(e.Name()) {
			continue
		}
		c := drmCard{
			name:   e.Name(),
			path:   filepath.Join(root, e.Name()),
			device: filepath.Join(root, e.Name(), "device"),
		}
		v, err := sysfs.ReadString(filepath.Join(c.device, "vendor"))
		if err != nil || !strings.EqualFold(v, vendor) {
			continue
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// pciAddress resolves the device symlink to its PCI slot name, e.g. 0000:03:00.0.
func (c drmCard) pciAddress() string {
	target, err := filepath.EvalSymlinks(c.device)
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

// hwmonDirs returns the hwmon directories under the card's device.
func (c drmCard) hwmonDirs() []string {
	root := filepath.Join(c.device, "hwmon")
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		dirs = append(dirs, filepath.Join(root, e.Name()))
	}
	return dirs
}

// hwmonFirst returns the first readable file in any hwmon dir whose name has
// the prefix and one of the suffixes, divided by divisor.
func (c drmCard) hwmonFirst(prefix string, suffixes []string, divisor float64) (float64, bool) {
	for _, dir := range c.hwmonDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			for _, suf := range suffixes {
				if !strings.HasSuffix(name, suf) {
					continue
				}
				if v, err := sysfs.ReadFloat(filepath.Join(dir, name)); err == nil {
					return v / divisor, true
				}
			}
		}
	}
	return 0, false
}

func (c drmCard) temp() float64 {
	v, _ := c.hwmonFirst("temp", []string{"_input"}, 1000)
	return v
}

// power is reported by amdgpu and i915 hwmon in microwatts.
func (c drmCard) power() float64 {
	v, _ := c.hwmonFirst("power", []string{"_average", "_input"}, 1e6)
	return v
}

// hwmonFile returns one named hwmon file in the first hwmon dir that has it.
func (c drmCard) hwmonFile(name string) (float64, bool) {
	for _, dir := range c.hwmonDirs() {
		if v, err := sysfs.ReadFloat(filepath.Join(dir, name)); err == nil {
			return v, true
		}
	}
	return 0, false
}

// pciNames resolves PCI addresses to marketing names through ghw, read once.
type pciNames struct {
	log   logger.Logger
	once  sync.Once
	names map[string]string
}

func newPCINames(log logger.Logger) *pciNames {
	return &pciNames{log: log}
}

func (p *pciNames) lookup(addr string) string {
	p.once.Do(func() {
		p.names = make(map[string]string)
		info, err := ghw.GPU()
		if err != nil {
			p.log.Debug("failed to read gpu metadata", "error", err)
			return
		}
		for _, card := range info.GraphicsCards {
			if card == nil || card.DeviceInfo == nil || card.DeviceInfo.Product == nil {
				continue
			}
			if name := strings.TrimSpace(card.DeviceInfo.Product.Name); name != "" {
				p.names[card.Address] = name
			}
		}
	})
	return p.names[addr]
}
