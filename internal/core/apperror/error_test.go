package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_WrapChain(t *testing.T) {
	base := errors.New("connection reset")
	appErr := NewDatabase("insert movement", base)
	wrapped := fmt.Errorf("process line: %w", appErr)

	got, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeDatabase, got.Code)
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(wrapped))
}

func TestAppError_Helpers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		conflict bool
		status   int
	}{
		{"not found", NewNotFound("balance", "k"), true, false, http.StatusNotFound},
		{"concurrent", NewConcurrentModification("movement", "x"), false, true, http.StatusConflict},
		{"validation", NewValidation("bad"), false, false, http.StatusBadRequest},
		{"quantity", NewInvalidQuantity("line-1", "-5"), false, false, http.StatusBadRequest},
		{"period", NewInvalidPeriod("reversed"), false, false, http.StatusBadRequest},
		{"plain error", errors.New("boom"), false, false, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.conflict, IsConcurrentModification(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := NewInvalidInput("date", "expected YYYY-MM-DD").WithDetail("value", "2024-13-01")
	assert.Equal(t, "date", err.Details["field"])
	assert.Equal(t, "2024-13-01", err.Details["value"])
	assert.Contains(t, err.Error(), CodeInvalidInput)
}

func TestNewInvalidQuantity_Details(t *testing.T) {
	err := NewInvalidQuantity("line-1", "0")
	assert.Equal(t, CodeInvalidQuantity, err.Code)
	assert.Equal(t, "line-1", err.Details["entry_line_id"])
	assert.Equal(t, "0", err.Details["quantity"])
}
