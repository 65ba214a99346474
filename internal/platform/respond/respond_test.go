// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package respond_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/respond"
)

/*
TestMessage verifies outcome messages are wrapped in the success envelope.
*/
func TestMessage(t *testing.T) {
	recorder := httptest.NewRecorder()
	respond.Message(recorder, "Email verified successfully")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json; charset=utf-8", recorder.Header().Get("Content-Type"))

	var body struct {
		Data respond.MessageEnvelope `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "Email verified successfully", body.Data.Message)
}

/*
TestError verifies typed errors keep their status and details while
unexpected errors are masked as 500.
*/
func TestError(t *testing.T) {
	request := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

	t.Run("typed error", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		respond.Error(recorder, request, apperr.ValidationError("Invalid input",
			apperr.FieldError{Field: "email", Message: "is required"}))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		var body respond.ErrorEnvelope
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, apperr.CodeValidation, body.Code)
		require.Len(t, body.Details, 1)
		assert.Equal(t, "email", body.Details[0].Field)
	})

	t.Run("unexpected error", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		respond.Error(recorder, request, errors.New("redis: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		assert.NotContains(t, recorder.Body.String(), "redis")
		var body respond.ErrorEnvelope
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, apperr.CodeInternal, body.Code)
	})
}
