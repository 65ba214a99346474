// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

/*
Package notify delivers account emails (welcome, verification, reset codes,
password-changed and lock notices) on a best-effort basis.

Architecture:

  - Composer: renders a [Message] from the text and HTML templates.
  - Sink: the delivery transport ([LogSink], [RedisOutboxSink]).
  - Dispatcher: sends on a background goroutine and logs failures, so a
    broken sink never fails or delays the auth operation that triggered it.
*/
package notify

import "time"

// Kind identifies which template produced a message.
type Kind string

const (
	KindWelcome         Kind = "welcome"
	KindVerifyEmail     Kind = "verify_email"
	KindResetPassword   Kind = "reset_password"
	KindPasswordChanged Kind = "password_changed"
	KindAccountLocked   Kind = "account_locked"
)

// Message is one outbound email.
type Message struct {
	Kind      Kind      `json:"kind"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Text      string    `json:"text"`
	HTML      string    `json:"html,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
