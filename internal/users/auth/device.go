// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"net/http"

	"github.com/mileusna/useragent"

	"github.com/azexpress/storefront/internal/platform/constants"
	"github.com/azexpress/storefront/internal/platform/middleware"
)

// loopbackAliases collapse IPv6 loopback forms so local sessions read the same.
var loopbackAliases = map[string]string{
	"::1":              "127.0.0.1",
	"::ffff:127.0.0.1": "127.0.0.1",
}

// DeviceFromRequest builds the session descriptor from the User-Agent and the
// edge geolocation headers.
func DeviceFromRequest(request *http.Request) DeviceInfo {
	agent := useragent.Parse(request.UserAgent())

	ip := middleware.RealIP(request)
	if alias, ok := loopbackAliases[ip]; ok {
		ip = alias
	}

	return DeviceInfo{
		Browser: Software{Name: agent.Name, Version: agent.Version},
		OS:      Software{Name: agent.OS, Version: agent.OSVersion},
		Device:  Hardware{Type: deviceType(agent), Model: agent.Device},
		IP:      ip,
		Region:  request.Header.Get(constants.HeaderGeoRegion),
		City:    request.Header.Get(constants.HeaderGeoCity),
		Country: request.Header.Get(constants.HeaderGeoCountry),
	}.Normalized()
}

func deviceType(agent useragent.UserAgent) string {
	switch {
	case agent.Bot:
		return "bot"
	case agent.Tablet:
		return "tablet"
	case agent.Mobile:
		return "mobile"
	case agent.Desktop:
		return "desktop"
	default:
		return unknown
	}
}
