package auth

import (
	"strings"

	"github.com/vexpense/vexpense/internal/models"
)

const unknown = "Unknown"

// DeviceInfo describes the client that opened a session.
type DeviceInfo struct {
	UserAgent  string `json:"userAgent"`
	IPAddress  string `json:"ipAddress"`
	DeviceType string `json:"deviceType"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
}

// ParseDeviceInfo classifies a User-Agent header into device type, browser and OS.
func ParseDeviceInfo(userAgent, ipAddress string) DeviceInfo {
	userAgent = strings.TrimSpace(userAgent)
	return DeviceInfo{
		UserAgent:  userAgent,
		IPAddress:  strings.TrimSpace(ipAddress),
		DeviceType: classifyDevice(userAgent),
		Browser:    classifyBrowser(userAgent),
		OS:         classifyOS(userAgent),
	}
}

func classifyDevice(ua string) string {
	if containsAny(ua, "Mobile", "Android", "iPhone") {
		return "mobile"
	}
	return "desktop"
}

// Order matters: Edge and Chrome UAs also mention Safari, Edge mentions Chrome.
func classifyBrowser(ua string) string {
	switch {
	case ua == "":
		return unknown
	case strings.Contains(ua, "Edg"):
		return "Edge"
	case strings.Contains(ua, "Chrome"):
		return "Chrome"
	case strings.Contains(ua, "Firefox"):
		return "Firefox"
	case strings.Contains(ua, "Safari"):
		return "Safari"
	default:
		return "Other"
	}
}

// iOS UAs mention "Mac OS X" and Android UAs mention Linux, so they are tested first.
func classifyOS(ua string) string {
	switch {
	case ua == "":
		return unknown
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case containsAny(ua, "iPhone", "iPad"):
		return "iOS"
	case strings.Contains(ua, "Mac"):
		return "macOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Other"
	}
}

func containsAny(value string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(value, needle) {
			return true
		}
	}
	return false
}

func deviceInfoFromSession(session *models.Session) DeviceInfo {
	return DeviceInfo{
		UserAgent:  session.UserAgent,
		IPAddress:  session.IPAddress,
		DeviceType: session.DeviceType,
		Browser:    session.Browser,
		OS:         session.OS,
	}
}
