// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// # Two-Factor Engine

// TOTPSetup is what the owner needs to enrol an authenticator app.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qrCode"`
}

// TOTPEngine generates and checks RFC 6238 codes: 30 second period, six
// digits, SHA1, one step of clock skew either way.
type TOTPEngine struct {
	issuer string
	qrSize int
}

const (
	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 20
	defaultQRSize  = 256
)

// NewTOTPEngine returns an engine labelling secrets with issuer.
func NewTOTPEngine(issuer string) *TOTPEngine {
	return &TOTPEngine{issuer: issuer, qrSize: defaultQRSize}
}

// Generate creates a new secret for accountName with its provisioning URI and
// a PNG QR code as a data URL.
func (engine *TOTPEngine) Generate(accountName string) (*TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      engine.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("totp_generate_failed: %w", err)
	}

	qrCode, err := engine.qrDataURL(key.URL())
	if err != nil {
		return nil, err
	}

	return &TOTPSetup{Secret: key.Secret(), URI: key.URL(), QRCode: qrCode}, nil
}

// Validate reports whether code is valid for secret at the given instant.
// Malformed input is simply invalid.
func (engine *TOTPEngine) Validate(secret, code string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at, validateOpts())
	return err == nil && valid
}

// Code returns the current code for secret. Used by tests and tooling.
func (engine *TOTPEngine) Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, validateOpts())
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (engine *TOTPEngine) qrDataURL(uri string) (string, error) {
	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("totp_qr_encode_failed: %w", err)
	}

	code, err = barcode.Scale(code, engine.qrSize, engine.qrSize)
	if err != nil {
		return "", fmt.Errorf("totp_qr_scale_failed: %w", err)
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, code); err != nil {
		return "", fmt.Errorf("totp_qr_png_failed: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buffer.Bytes()), nil
}
