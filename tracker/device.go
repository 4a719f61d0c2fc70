package tracker

import "strings"

// Device classes derived from the user agent.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// ClassifyDevice buckets a user agent into mobile, tablet or desktop.
// Ordered substring checks: tablets first, since tablet agents often also
// carry mobile markers, then phones, then the desktop default.
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad"),
		strings.Contains(ua, "tablet"),
		strings.Contains(ua, "kindle"),
		strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return DeviceTablet
	case strings.Contains(ua, "mobi"),
		strings.Contains(ua, "iphone"),
		strings.Contains(ua, "android"),
		strings.Contains(ua, "ipod"),
		strings.Contains(ua, "windows phone"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}
