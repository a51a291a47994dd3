package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrAuthenticationRequired, http.StatusUnauthorized},
		{fmt.Errorf("%w: expired", ErrAuthenticationRequired), http.StatusUnauthorized},
		{ErrLevelLocked, http.StatusForbidden},
		{ErrNoContent, http.StatusNotFound},
		{ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: dial tcp", ErrSourceUnavailable), http.StatusServiceUnavailable},
		{ErrInvalidRole, http.StatusBadRequest},
		{ErrInvalidAnswer, http.StatusBadRequest},
		{fmt.Errorf("%w: .exe", ErrUnsupportedFile), http.StatusBadRequest},
		{ErrAlreadySubmitted, http.StatusConflict},
		{ErrSessionBusy, http.StatusConflict},
		{ErrTimerUnavailable, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusFor(tc.err), tc.err.Error())
	}
}

func TestHandleErrorWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleError(c, ErrLevelLocked)

	require.Equal(t, http.StatusForbidden, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, ErrLevelLocked.Error(), resp.Message)
}
