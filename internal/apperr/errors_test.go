package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedChain(t *testing.T) {
	base := errors.New("port is already allocated")
	err := fmt.Errorf("start container: %w", Wrap(RuntimeError, base))

	assert.Equal(t, RuntimeError, KindOf(err))
	assert.True(t, Is(err, RuntimeError))
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, "start container: port is already allocated", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, Internal))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(RuntimeError, nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{InvalidRequest, http.StatusBadRequest},
		{UnsupportedFormat, http.StatusBadRequest},
		{ImageNotAllowed, http.StatusForbidden},
		{PortConflict, http.StatusConflict},
		{NoPortAvailable, http.StatusServiceUnavailable},
		{NotFound, http.StatusNotFound},
		{RuntimeError, http.StatusBadGateway},
		{Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.kind))
		})
	}
}
