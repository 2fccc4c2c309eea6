package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDeviceInfo(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		device  string
		browser string
		os      string
	}{
		{
			name:    "chrome on windows",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			device:  "desktop",
			browser: "Chrome",
			os:      "Windows",
		},
		{
			name:    "edge on windows",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 Edg/124.0",
			device:  "desktop",
			browser: "Edge",
			os:      "Windows",
		},
		{
			name:    "safari on iphone",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			device:  "mobile",
			browser: "Safari",
			os:      "iOS",
		},
		{
			name:    "chrome on android",
			ua:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Mobile Safari/537.36",
			device:  "mobile",
			browser: "Chrome",
			os:      "Android",
		},
		{
			name:    "firefox on linux",
			ua:      "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			device:  "desktop",
			browser: "Firefox",
			os:      "Linux",
		},
		{
			name:    "safari on mac",
			ua:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
			device:  "desktop",
			browser: "Safari",
			os:      "macOS",
		},
		{
			name:    "command line client",
			ua:      "curl/8.5.0",
			device:  "desktop",
			browser: "Other",
			os:      "Other",
		},
		{
			name:    "empty",
			ua:      "",
			device:  "desktop",
			browser: "Unknown",
			os:      "Unknown",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := ParseDeviceInfo(tc.ua, " 203.0.113.9 ")
			require.Equal(t, tc.device, info.DeviceType)
			require.Equal(t, tc.browser, info.Browser)
			require.Equal(t, tc.os, info.OS)
			require.Equal(t, "203.0.113.9", info.IPAddress)
		})
	}
}
