// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"
)

// # Templates

type templatePair struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// templateSources holds subject, text body and HTML body per kind.
var templateSources = map[Kind][3]string{
	KindWelcome: {
		"Welcome to {{.Brand}}",
		`Hi {{.Username}},

Your {{.Brand}} account is ready. Sign in at {{.Link}} to start shopping.
`,
		`<p>Hi {{.Username}},</p>
<p>Your {{.Brand}} account is ready. <a href="{{.Link}}">Sign in</a> to start shopping.</p>`,
	},
	KindVerifyEmail: {
		"Verify your {{.Brand}} email address",
		`Hi {{.Username}},

Confirm your email address by opening this link within {{.Validity}}:
{{.Link}}
`,
		`<p>Hi {{.Username}},</p>
<p>Confirm your email address by opening <a href="{{.Link}}">this link</a> within {{.Validity}}.</p>`,
	},
	KindResetPassword: {
		"Reset your {{.Brand}} password",
		`Hi {{.Username}},

Your password reset code is {{.Code}}. It is valid for {{.Validity}} and can be used once.
You can also reset your password from this link:
{{.Link}}

If you did not ask for a reset, ignore this email.
`,
		`<p>Hi {{.Username}},</p>
<p>Your password reset code is <strong>{{.Code}}</strong>. It is valid for {{.Validity}} and can be used once.</p>
<p>You can also <a href="{{.Link}}">reset your password from this link</a>.</p>
<p>If you did not ask for a reset, ignore this email.</p>`,
	},
	KindPasswordChanged: {
		"Your {{.Brand}} password was changed",
		`Hi {{.Username}},

The password for your account was just changed.
If this was not you, reset your password at {{.Link}} and contact support.
`,
		`<p>Hi {{.Username}},</p>
<p>The password for your account was just changed.</p>
<p>If this was not you, <a href="{{.Link}}">reset your password</a> and contact support.</p>`,
	},
	KindAccountLocked: {
		"Your {{.Brand}} account is temporarily locked",
		`Hi {{.Username}},

We locked your account after several failed sign-in attempts.
You can try again after {{.Until}}. If this was not you, reset your password at {{.Link}}.
`,
		`<p>Hi {{.Username}},</p>
<p>We locked your account after several failed sign-in attempts.</p>
<p>You can try again after {{.Until}}. If this was not you, <a href="{{.Link}}">reset your password</a>.</p>`,
	},
}

// templateData is the view model shared by every template.
type templateData struct {
	Brand    string
	Username string
	Link     string
	Code     string
	Validity string
	Until    string
}

// # Composer

// ComposerConfig configures a [Composer].
type ComposerConfig struct {
	Brand       string
	From        string
	FrontendURL string
}

// Composer renders account emails. It is safe for concurrent use.
type Composer struct {
	config    ComposerConfig
	templates map[Kind]templatePair
}

// NewComposer parses every template up front.
func NewComposer(config ComposerConfig) (*Composer, error) {
	config.FrontendURL = strings.TrimRight(config.FrontendURL, "/")

	templates := make(map[Kind]templatePair, len(templateSources))
	for kind, source := range templateSources {
		subject, err := texttemplate.New(string(kind) + "_subject").Option("missingkey=error").Parse(source[0])
		if err != nil {
			return nil, fmt.Errorf("notify: parse %s subject: %w", kind, err)
		}
		text, err := texttemplate.New(string(kind)).Option("missingkey=error").Parse(source[1])
		if err != nil {
			return nil, fmt.Errorf("notify: parse %s text: %w", kind, err)
		}
		html, err := htmltemplate.New(string(kind)).Option("missingkey=error").Parse(source[2])
		if err != nil {
			return nil, fmt.Errorf("notify: parse %s html: %w", kind, err)
		}
		templates[kind] = templatePair{subject: subject, text: text, html: html}
	}

	return &Composer{config: config, templates: templates}, nil
}

// Welcome is sent once the email address is verified.
func (composer *Composer) Welcome(to, username string) (Message, error) {
	return composer.render(KindWelcome, to, templateData{
		Username: username,
		Link:     composer.link("/login", ""),
	})
}

// VerifyEmail carries the signed verification link.
func (composer *Composer) VerifyEmail(to, username, token string, validity time.Duration) (Message, error) {
	return composer.render(KindVerifyEmail, to, templateData{
		Username: username,
		Link:     composer.link("/verify-email/", token),
		Validity: humanize(validity),
	})
}

// ResetPassword carries both the one-shot code and the signed reset link.
func (composer *Composer) ResetPassword(to, username, code, token string, validity time.Duration) (Message, error) {
	return composer.render(KindResetPassword, to, templateData{
		Username: username,
		Link:     composer.link("/reset-password/", token),
		Code:     code,
		Validity: humanize(validity),
	})
}

// PasswordChanged confirms a completed change or reset.
func (composer *Composer) PasswordChanged(to, username string) (Message, error) {
	return composer.render(KindPasswordChanged, to, templateData{
		Username: username,
		Link:     composer.link("/forgot-password", ""),
	})
}

// AccountLocked tells the owner when sign-in reopens.
func (composer *Composer) AccountLocked(to, username string, until time.Time) (Message, error) {
	return composer.render(KindAccountLocked, to, templateData{
		Username: username,
		Link:     composer.link("/forgot-password", ""),
		Until:    until.UTC().Format("15:04 MST, 2 Jan 2006"),
	})
}

func (composer *Composer) render(kind Kind, to string, data templateData) (Message, error) {
	pair := composer.templates[kind]
	data.Brand = composer.config.Brand

	var subjectBuf, textBuf, htmlBuf bytes.Buffer
	if err := pair.subject.Execute(&subjectBuf, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s subject: %w", kind, err)
	}
	if err := pair.text.Execute(&textBuf, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s text: %w", kind, err)
	}
	if err := pair.html.Execute(&htmlBuf, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s html: %w", kind, err)
	}

	return Message{
		Kind:    kind,
		From:    composer.config.From,
		To:      to,
		Subject: subjectBuf.String(),
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
	}, nil
}

// link joins the frontend origin, a route, and an escaped path token.
func (composer *Composer) link(route, token string) string {
	return composer.config.FrontendURL + route + url.PathEscape(token)
}

// humanize renders durations the way the emails phrase them.
func humanize(duration time.Duration) string {
	switch {
	case duration >= time.Hour && duration%time.Hour == 0:
		hours := int(duration / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	case duration >= time.Minute:
		minutes := int(duration.Round(time.Minute) / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	default:
		return duration.String()
	}
}
