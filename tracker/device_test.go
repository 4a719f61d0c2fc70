package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDevice(t *testing.T) {
	cases := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", DeviceMobile},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari", DeviceMobile},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", DeviceTablet},
		{"Mozilla/5.0 (Linux; Android 14; SM-X710) Safari", DeviceTablet},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", DeviceDesktop},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)", DeviceDesktop},
		{"", DeviceDesktop},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyDevice(tc.ua), tc.ua)
	}
}
