// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/azexpress/storefront/internal/platform/constants"
)

const chromeOnWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

func TestDeviceFromRequest(t *testing.T) {
	request := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	request.Header.Set("User-Agent", chromeOnWindows)
	request.Header.Set(constants.HeaderGeoCountry, "EG")
	request.Header.Set(constants.HeaderGeoRegion, "C")
	request.Header.Set(constants.HeaderGeoCity, "Cairo")
	request.RemoteAddr = "203.0.113.7:50312"

	device := DeviceFromRequest(request)

	assert.Equal(t, "Chrome", device.Browser.Name)
	assert.Equal(t, "125.0.0.0", device.Browser.Version)
	assert.Equal(t, "Windows", device.OS.Name)
	assert.Equal(t, "desktop", device.Device.Type)
	assert.Equal(t, unknown, device.Device.Model)
	assert.Equal(t, "203.0.113.7", device.IP)
	assert.Equal(t, "EG", device.Country)
	assert.Equal(t, "C", device.Region)
	assert.Equal(t, "Cairo", device.City)
}

func TestDeviceFromRequest_Defaults(t *testing.T) {
	request := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	request.RemoteAddr = "[::1]:8080"

	device := DeviceFromRequest(request)

	assert.Equal(t, "127.0.0.1", device.IP, "loopback aliases collapse")
	assert.Equal(t, unknown, device.Browser.Name)
	assert.Equal(t, unknown, device.OS.Version)
	assert.Equal(t, unknown, device.Country)
	assert.Equal(t, unknown, device.City)
}

func TestDeviceFromRequest_ForwardedFor(t *testing.T) {
	request := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	request.Header.Set(constants.HeaderXForwardedFor, "198.51.100.4, 10.0.0.1")

	assert.Equal(t, "198.51.100.4", DeviceFromRequest(request).IP)
}
