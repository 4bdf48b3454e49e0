package errorbank

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, BadRequest("x").StatusCode())
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("x").StatusCode())
	assert.Equal(t, http.StatusForbidden, Forbidden("x").StatusCode())
	assert.Equal(t, http.StatusConflict, Conflict("x").StatusCode())
	assert.Equal(t, http.StatusNotFound, NotFound("x").StatusCode())
	assert.Equal(t, http.StatusUnprocessableEntity, Unprocessable("x").StatusCode())
	assert.Equal(t, http.StatusInternalServerError, Internal("x").StatusCode())
}

func TestGRPCCodes(t *testing.T) {
	assert.Equal(t, codes.Unauthenticated, Unauthorized("x").GRPCCode())
	assert.Equal(t, codes.PermissionDenied, Forbidden("x").GRPCCode())
	assert.Equal(t, codes.NotFound, NotFound("x").GRPCCode())
}

func TestInsufficientStock(t *testing.T) {
	err := InsufficientStock("widget")

	assert.Equal(t, KindConflict, err.Kind())
	assert.Equal(t, "not enough stock for product: widget", err.Message())
	assert.Equal(t, "widget", err.Details()["product"])
	assert.True(t, IsInsufficientStock(err))

	assert.False(t, IsInsufficientStock(Conflict("plain conflict")))
	assert.False(t, IsInsufficientStock(errors.New("boom")))
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("disk on fire")
	appErr := From(cause)

	require.NotNil(t, appErr)
	assert.Equal(t, KindInternal, appErr.Kind())
	assert.True(t, errors.Is(appErr, cause))
}

func TestFromPassesThrough(t *testing.T) {
	orig := NotFound("missing")
	assert.Same(t, orig, From(orig))
}
