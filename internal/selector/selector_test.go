// ABOUTME: Tests for selector validation and the compiled-selector cache.
// ABOUTME: Covers selectors the extension test suite expects to fail.

package selector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	v := New(0)

	valid := []string{
		"#test-input",
		"input[name=q]",
		"div.result > a",
		"ul li:nth-child(2)",
		"#test-button, #test-output",
		`input[type="text"]`,
	}
	for _, sel := range valid {
		assert.NoError(t, v.Validate(sel), sel)
	}

	invalid := []string{
		"",
		"   ",
		"invalid>>selector",
		"div[",
		"#",
		"a:nosuchpseudo",
	}
	for _, sel := range invalid {
		err := v.Validate(sel)
		require.Error(t, err, sel)
		assert.True(t, errors.Is(err, ErrInvalid), sel)
		assert.Equal(t, "Invalid selector: "+sel, err.Error())
	}
}

func TestValidatorCache(t *testing.T) {
	v := New(2)

	_, err := v.Compile("#a")
	require.NoError(t, err)
	_, err = v.Compile("#b")
	require.NoError(t, err)
	assert.Len(t, v.cache, 2)

	_, err = v.Compile("#c")
	require.NoError(t, err)
	assert.Len(t, v.cache, 1)

	// Failures are never cached.
	_ = v.Validate("div[")
	assert.NotContains(t, v.cache, "div[")
}

func TestCompileUncached(t *testing.T) {
	group, err := Compile("#test-output")
	require.NoError(t, err)
	assert.NotNil(t, group)

	_, err = Compile("invalid>>selector")
	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "invalid>>selector", invalid.Selector)
}
