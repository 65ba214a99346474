// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import "time"

// unknown fills every device attribute the request did not reveal.
const unknown = "unknown"

// Software names a browser or operating system and its version.
type Software struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Hardware describes the device class and, when the agent reports one, its model.
type Hardware struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

// DeviceInfo describes where a session was opened from. It is shown to the
// owner when listing sessions.
type DeviceInfo struct {
	Browser Software `json:"browser"`
	OS      Software `json:"os"`
	Device  Hardware `json:"device"`
	IP      string   `json:"ip"`
	Region  string   `json:"region"`
	City    string   `json:"city"`
	Country string   `json:"country"`
}

// Normalized returns a copy where empty attributes read "unknown".
func (device DeviceInfo) Normalized() DeviceInfo {
	for _, field := range []*string{
		&device.Browser.Name, &device.Browser.Version,
		&device.OS.Name, &device.OS.Version,
		&device.Device.Type, &device.Device.Model,
		&device.IP, &device.Region, &device.City, &device.Country,
	} {
		if *field == "" {
			*field = unknown
		}
	}
	return device
}

// Session is one live refresh token.
//
// The raw token is never stored. TokenHash is its SHA-256 digest and doubles
// as the Redis key suffix.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	TokenHash string     `json:"tokenHash"`
	Device    DeviceInfo `json:"device"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}
