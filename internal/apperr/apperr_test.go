package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestIsMatchesCategory(t *testing.T) {
	err := New(TransientIO, "watch.read", errors.New("disk error"))
	if !Is(err, TransientIO) {
		t.Error("expected Is to match TransientIO")
	}
	if Is(err, StoreFailure) {
		t.Error("expected Is not to match a different category")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		category Category
		want     int
	}{
		{InputRejected, http.StatusBadRequest},
		{ProtocolInvariantViolated, http.StatusBadRequest},
		{TransientIO, http.StatusInternalServerError},
		{StoreFailure, http.StatusInternalServerError},
		{UpstreamLLMFailure, http.StatusInternalServerError},
		{CancellationTimeout, http.StatusGatewayTimeout},
	}
	for _, c := range cases {
		err := New(c.category, "op", errors.New("x"))
		if got := HTTPStatus(err); got != c.want {
			t.Errorf("%s: got %d, want %d", c.category, got, c.want)
		}
	}
}

func TestHTTPStatusUnwrappedErrorDefaultsToInternal(t *testing.T) {
	if got := HTTPStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("expected StatusInternalServerError for a plain error, got %d", got)
	}
}
