// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

// Package ctxkey holds the typed keys under which middleware stores
// per-request values. Only ctxutil and respond read them directly.
package ctxkey

// key keeps these keys distinct from plain string keys set by other packages.
type key string

const (
	// KeyRequestID carries the X-Request-ID correlation value.
	KeyRequestID key = "request_id"

	// KeyUser carries the verified [sec.AccessClaims] of the caller.
	KeyUser key = "user"

	// KeyLogger carries the request-scoped [*log/slog.Logger].
	KeyLogger key = "logger"
)
