package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsURI(t *testing.T) {
	cases := map[string]bool{
		"hub://guardrails/test":        true,
		"hub://guardrails/test>=0.0.1": true,
		"guardrails/test":              false,
		"numpy":                        false,
		"git+https://github.com/guardrails-ai/guardrails.git": false,
		"": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsURI(in), in)
	}
}

func TestParseURIBasic(t *testing.T) {
	ref, err := ParseURI("hub://guardrails/test")
	require.NoError(t, err)
	assert.Equal(t, "guardrails/test", ref.ID.String())
	assert.Empty(t, ref.Specifier)
	assert.Equal(t, "hub://guardrails/test", ref.String())
}

func TestParseURIWithSpecifier(t *testing.T) {
	ref, err := ParseURI("hub://guardrails/test >= 0.0.1")
	require.NoError(t, err)
	assert.Equal(t, ID{Namespace: "guardrails", Name: "test"}, ref.ID)
	assert.Equal(t, ">=0.0.1", ref.Specifier)
	assert.Equal(t, "hub://guardrails/test>=0.0.1", ref.String())
}

func TestParseURIRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"guardrails/test",
		"hub://",
		"hub://root-guard",
		"hub:///name",
		"hub://ns/",
		"hub://ns/a/b",
		"hub://ns/na$me",
	} {
		_, err := ParseURI(raw)
		assert.True(t, errors.Is(err, ErrUnknownValidator), "%q: %v", raw, err)
	}
}

func TestPackageName(t *testing.T) {
	ref, err := ParseURI("hub://guardrails/some_validator")
	require.NoError(t, err)
	assert.Equal(t, "guardrails-grhub-some-validator", ref.ID.PackageName())
	assert.Equal(t, "guardrails-grhub-some-validator", ref.Requirement())

	ref, err = ParseURI("hub://guardrails/some_validator>=0.5.0")
	require.NoError(t, err)
	assert.Equal(t, "guardrails-grhub-some-validator>=0.5.0", ref.Requirement())
}

func TestSameValidator(t *testing.T) {
	assert.True(t, SameValidator("hub://g/x", "hub://g/x>=1.0"))
	assert.False(t, SameValidator("hub://g/x", "hub://g/y"))
	assert.True(t, SameValidator("hub://bad", " hub://bad "))
}
