package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfelder/turnstile/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestResolveRef_Success(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("mock", &MockClient{ProviderName: "mock"})

	client, ref, err := reg.ResolveRef("mock/test-model")
	require.NoError(t, err)
	assert.Equal(t, "mock", client.Name())
	assert.Equal(t, ModelRef{Provider: "mock", Model: "test-model"}, ref)
	assert.Equal(t, "mock/test-model", ref.String())
}

func TestResolveRef_Failures(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("mock", &MockClient{ProviderName: "mock"})

	cases := []struct {
		name string
		ref  string
		kind ResolutionErrorKind
	}{
		{"blank", "", ErrBlankRef},
		{"whitespace", "   ", ErrBlankRef},
		{"no slash", "just-a-model", ErrMissingProvider},
		{"empty provider", "/model", ErrMissingProvider},
		{"empty model", "mock/", ErrMissingModelID},
		{"unknown provider", "gemini/model", ErrUnknownProvider},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := reg.ResolveRef(tc.ref)
			var rerr *ResolutionError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tc.kind, rerr.Kind)
			assert.NotEmpty(t, rerr.Error())
		})
	}
}

func TestResolveRef_NoProviders(t *testing.T) {
	reg := NewRegistry(silentLog())

	_, _, err := reg.ResolveRef("mock/model")
	var rerr *ResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ErrNoProviders, rerr.Kind)
}

func TestRegistry_GetAndList(t *testing.T) {
	reg := NewRegistry(silentLog())
	assert.Empty(t, reg.List())

	reg.Register("a", &MockClient{ProviderName: "a"})
	reg.Register("b", &MockClient{ProviderName: "b"})

	_, ok := reg.Get("a")
	assert.True(t, ok)
	_, ok = reg.Get("c")
	assert.False(t, ok)
	assert.Len(t, reg.List(), 2)
}
