package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_WrapAndUnwrap(t *testing.T) {
	root := errors.New("connection reset")
	err := Internal(CodeStoreUnavailable, "object store unavailable", root)

	assert.ErrorIs(t, err, root)
	assert.Equal(t, "STORE_UNAVAILABLE: object store unavailable: connection reset", err.Error())

	wrapped := fmt.Errorf("get original: %w", err)
	ae, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindServerInternal, ae.Kind)
	assert.Equal(t, CodeStoreUnavailable, ae.Code)
}

func TestError_WithDoesNotMutateReceiver(t *testing.T) {
	base := ClientInput(CodePrefixInvalid, "invalid prefix")
	a := base.With("prefix", "a b").WithCause("pattern")
	b := base.With("prefix", "c/d")

	assert.Nil(t, base.Context)
	assert.Empty(t, base.Cause)
	assert.Equal(t, map[string]string{"prefix": "a b"}, a.Context)
	assert.Equal(t, "pattern", a.Cause)
	assert.Equal(t, map[string]string{"prefix": "c/d"}, b.Context)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"client", ClientInput(CodeNoFile, "no file"), KindClientInput},
		{"not found", NotFound("missing"), KindNotFound},
		{"auth", Unauthorized("bad token"), KindAuth},
		{"wrapped", fmt.Errorf("x: %w", NotFound("missing")), KindNotFound},
		{"plain", errors.New("boom"), KindServerInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "client_input", KindClientInput.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "auth", KindAuth.String())
	assert.Equal(t, "server_internal", KindServerInternal.String())
}
