// internal/browser/options.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
)

// AllocatorOptions turns cfg into Chrome launch options. The defaults are spelled out rather
// than taken from chromedp.DefaultExecAllocatorOptions so that headless mode is opt-in.
func AllocatorOptions(cfg Config) ([]chromedp.ExecAllocatorOption, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless, chromedp.DisableGPU)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.UserDataDir != "" {
		dir, err := homedir.Expand(cfg.UserDataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand user_data_dir: %w", err)
		}
		opts = append(opts, chromedp.UserDataDir(dir))
	}

	// Extra flags from the config file, either "name" or "name=value", with or without
	// leading dashes.
	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(arg, "-")
		if arg == "" {
			continue
		}
		if key, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts, nil
}
