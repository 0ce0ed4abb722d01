package browser

import (
	"fmt"
	"math/rand/v2"
)

// profile is a coherent browser identity for one render session. UA, Client
// Hints, viewport and locale all describe the same virtual desktop.
type profile struct {
	UserAgent           string
	Brands              [][2]string // [brand, majorVersion]
	Platform            string      // Client Hints platform (e.g. "Windows")
	PlatformVersion     string
	NavigatorPlatform   string
	AcceptLanguage      string
	Locale              string
	TimezoneID          string
	HardwareConcurrency int64
	ScreenWidth         int
	ScreenHeight        int
}

type platformPreset struct {
	uaOS              string
	navigatorPlatform string
	chPlatform        string
	chPlatformVersion string
}

var platformPresets = []platformPreset{
	{"Windows NT 10.0; Win64; x64", "Win32", "Windows", "10.0.0"},
	{"Windows NT 10.0; Win64; x64", "Win32", "Windows", "15.0.0"},
	{"Macintosh; Intel Mac OS X 10_15_7", "MacIntel", "macOS", "14.5.0"},
	{"X11; Linux x86_64", "Linux x86_64", "Linux", "6.5.0"},
}

type screenPreset struct {
	width  int
	height int
}

var screenPresets = []screenPreset{
	{1920, 1080},
	{1366, 768},
	{1536, 864},
	{1680, 1050},
}

type localePreset struct {
	timezoneID     string
	acceptLanguage string
	locale         string
}

var localePresets = []localePreset{
	{"America/New_York", "en-US,en;q=0.9", "en-US"},
	{"America/Chicago", "en-US,en;q=0.9", "en-US"},
	{"Europe/London", "en-GB,en;q=0.9,en-US;q=0.8", "en-GB"},
}

var chromeMajors = []string{"131", "132", "133"}

var hardwareConcurrencies = []int64{4, 8, 12, 16}

// newProfile picks a random but internally consistent identity.
func newProfile() *profile {
	plat := platformPresets[rand.IntN(len(platformPresets))]
	scr := screenPresets[rand.IntN(len(screenPresets))]
	loc := localePresets[rand.IntN(len(localePresets))]
	major := chromeMajors[rand.IntN(len(chromeMajors))]

	return &profile{
		UserAgent: fmt.Sprintf(
			"Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s.0.0.0 Safari/537.36",
			plat.uaOS, major,
		),
		Brands: [][2]string{
			{"Not A(Brand", "8"},
			{"Chromium", major},
			{"Google Chrome", major},
		},
		Platform:            plat.chPlatform,
		PlatformVersion:     plat.chPlatformVersion,
		NavigatorPlatform:   plat.navigatorPlatform,
		AcceptLanguage:      loc.acceptLanguage,
		Locale:              loc.locale,
		TimezoneID:          loc.timezoneID,
		HardwareConcurrency: hardwareConcurrencies[rand.IntN(len(hardwareConcurrencies))],
		ScreenWidth:         scr.width,
		ScreenHeight:        scr.height,
	}
}
