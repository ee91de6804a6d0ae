package browser

import (
	"sort"

	"github.com/chromedp/chromedp/device"
)

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Devices are the emulation presets a recording can run under. Scale stays at 1 so that
// element boxes and viewport pixels line up.
var Devices = map[string]device.Info{
	"iPhone 12 Pro": {
		Name:      "iPhone 12 Pro",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1",
		Width:     390,
		Height:    844,
		Scale:     1.0,
		Mobile:    true,
		Touch:     true,
	},
	"iPad Pro": {
		Name:      "iPad Pro",
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 13_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/87.0.4280.77 Mobile/15E148 Safari/604.1",
		Width:     1024,
		Height:    1366,
		Scale:     1.0,
		Mobile:    true,
		Touch:     true,
	},
	"Galaxy S5": {
		Name:      "Galaxy S5",
		UserAgent: "Mozilla/5.0 (Linux; Android 5.0; SM-G900P Build/LRX21T) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Mobile Safari/537.36",
		Width:     360,
		Height:    640,
		Scale:     1.0,
		Mobile:    true,
		Touch:     true,
	},
	"Desktop 1280x800": {
		Name:      "Desktop 1280x800",
		UserAgent: desktopUA,
		Width:     1280,
		Height:    800,
		Scale:     1.0,
	},
	"Desktop 1920x1080": {
		Name:      "Desktop 1920x1080",
		UserAgent: desktopUA,
		Width:     1920,
		Height:    1080,
		Scale:     1.0,
	},
}

// LookupDevice finds a preset by name. An empty name means no emulation.
func LookupDevice(name string) (device.Info, bool) {
	if name == "" {
		return device.Info{}, false
	}
	dev, ok := Devices[name]
	return dev, ok
}

func DeviceNames() []string {
	names := make([]string, 0, len(Devices))
	for name := range Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
