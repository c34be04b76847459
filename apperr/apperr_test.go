package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fusionchat/server/apperr"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(apperr.Permission("blocked")))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(apperr.Conflict("already pending")))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(errors.New("plain")))
}

func TestKindOfWrapped(t *testing.T) {
	inner := apperr.NotFound("user not found")
	wrapped := fmt.Errorf("send request: %w", inner)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          apperr.Validation("empty message"),
		http.StatusForbidden:           apperr.Permission("blocked"),
		http.StatusNotFound:            apperr.NotFound("no such user"),
		http.StatusConflict:            apperr.Conflict("duplicate request"),
		http.StatusBadGateway:          apperr.Upstream("upload failed", errors.New("io")),
		http.StatusInternalServerError: errors.New("plain"),
	}
	for want, err := range cases {
		assert.Equal(t, want, apperr.HTTPStatus(err), "error %v", err)
	}
}

func TestMessageHidesInternalCause(t *testing.T) {
	err := apperr.Internal("store failure", errors.New("dial tcp: refused"))
	assert.Equal(t, "internal error", apperr.Message(err))

	err = apperr.Permission("you are blocked by this user")
	assert.Equal(t, "you are blocked by this user", apperr.Message(err))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := apperr.Upstream("upload failed", cause)
	assert.ErrorIs(t, err, cause)
}
