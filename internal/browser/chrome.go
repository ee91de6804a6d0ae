// Package browser drives the Chrome tab being recorded over the DevTools protocol.
package browser

import (
	"os"
	"os/exec"
	"runtime"

	"github.com/chromedp/chromedp"

	"webtestflow/recorder/internal/config"
)

// ExecPath returns the configured Chrome binary, or the first one found on this system.
// An empty result lets chromedp use its own lookup.
func ExecPath(configured string) string {
	if configured != "" {
		return configured
	}

	var chromePaths []string
	switch runtime.GOOS {
	case "linux":
		chromePaths = []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/opt/google/chrome/google-chrome",
		}
	case "darwin":
		chromePaths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		chromePaths = []string{
			"C:\\Program Files\\Google\\Chrome\\Application\\chrome.exe",
			"C:\\Program Files (x86)\\Google\\Chrome\\Application\\chrome.exe",
		}
	}
	for _, path := range chromePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium-browser", "chromium"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// AllocatorOptions are the Chrome flags for a recording browser. Screenshots are cropped
// in CSS pixels, so the device scale factor is pinned to 1.
func AllocatorOptions(cfg config.ChromeConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.HeadlessMode),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("force-device-scale-factor", "1"),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-pings", true),
		chromedp.Flag("no-crash-upload", true),
	)
	if path := ExecPath(cfg.ExecPath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	if dev, ok := LookupDevice(cfg.Device); ok {
		opts = append(opts, chromedp.UserAgent(dev.UserAgent))
	}
	return opts
}
