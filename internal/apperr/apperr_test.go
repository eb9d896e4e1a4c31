package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{InvalidErr("bad"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", NotFoundErr("gone")), http.StatusNotFound},
		{UnauthorizedErr("no"), http.StatusUnauthorized},
		{ConflictErr("state"), http.StatusConflict},
		{TooLargeErr("big"), http.StatusRequestEntityTooLarge},
		{Wrap(errors.New("db down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := Wrap(errors.New("pq: password authentication failed"))
	if PublicMessage(err) != "Unexpected error" {
		t.Errorf("internal detail leaked: %s", PublicMessage(err))
	}
	if PublicMessage(errors.New("raw")) != "Unexpected error" {
		t.Error("plain errors must not be shown")
	}
	if PublicMessage(ConflictErr("operation is not pending")) != "operation is not pending" {
		t.Error("public message lost")
	}
}
