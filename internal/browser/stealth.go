package browser

import (
	"context"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/stupside/reel/internal/app"
)

// allocatorOpts returns exec-allocator options for a sandbox-less headless
// Chrome that avoids the common automation flags.
func allocatorOpts(cfg app.BrowserConfig, p *profile) []chromedp.ExecAllocatorOption {
	var headlessVal string
	if cfg.Headless {
		headlessVal = "new"
	}

	return []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(cfg.ChromePath),

		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("headless", headlessVal),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("disable-setuid-sandbox", cfg.NoSandbox),

		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("mute-audio", true),

		chromedp.WindowSize(p.ScreenWidth, p.ScreenHeight),

		chromedp.UserAgent(p.UserAgent),
	}
}

// injectCDPStealth masks automation signals through CDP overrides.
func injectCDPStealth(p *profile) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := emulation.SetAutomationOverride(false).Do(ctx); err != nil {
			return err
		}

		if err := emulation.SetHardwareConcurrencyOverride(p.HardwareConcurrency).Do(ctx); err != nil {
			return err
		}

		if err := emulation.SetTimezoneOverride(p.TimezoneID).Do(ctx); err != nil {
			return err
		}

		if err := emulation.SetLocaleOverride().WithLocale(p.Locale).Do(ctx); err != nil {
			return err
		}

		ua := emulation.SetUserAgentOverride(p.UserAgent)
		ua.AcceptLanguage = p.AcceptLanguage
		ua.Platform = p.NavigatorPlatform

		brands := make([]*emulation.UserAgentBrandVersion, len(p.Brands))
		for i, b := range p.Brands {
			brands[i] = &emulation.UserAgentBrandVersion{Brand: b[0], Version: b[1]}
		}

		ua.UserAgentMetadata = &emulation.UserAgentMetadata{
			Brands:          brands,
			Platform:        p.Platform,
			PlatformVersion: p.PlatformVersion,
			Architecture:    "x86",
			Bitness:         "64",
			Mobile:          false,
		}
		return ua.Do(ctx)
	}
}
