package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oksasatya/account-service/internal/domain/errs"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("load: %w", errs.ErrNotFound), http.StatusNotFound},
		{errs.ErrConflict, http.StatusConflict},
		{errs.ErrConcurrencyConflict, http.StatusConflict},
		{errs.ErrDomainRule, http.StatusUnprocessableEntity},
		{errs.ErrInvalidState, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: missing role", errs.ErrForbidden), http.StatusForbidden},
		{errs.ErrInvalidToken, http.StatusBadRequest},
		{errs.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("redis: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusOf(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}
