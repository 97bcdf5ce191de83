package apierr

import (
	"fmt"
	"net/http"
	"testing"

	"travel-marketplace/internal/handoff"
	"travel-marketplace/internal/ledger"
	"travel-marketplace/internal/reconcile"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{handoff.ErrNotFound, http.StatusUnauthorized},
		{handoff.ErrExpired, http.StatusGone},
		{reconcile.ErrOrderMismatch, http.StatusBadRequest},
		{fmt.Errorf("debit: %w", ledger.ErrInsufficientBalance), http.StatusConflict},
		{fmt.Errorf("%w: timeout", reconcile.ErrGatewayUnavailable), http.StatusServiceUnavailable},
		{reconcile.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _, _ := Status(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
