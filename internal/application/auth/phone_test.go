package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

func TestNormalizePhonePrefixesBareNumbers(t *testing.T) {
	got, err := NormalizePhone("91234567", "+47")
	require.NoError(t, err)
	assert.Equal(t, "+4791234567", got)
}

func TestNormalizePhoneKeepsExplicitPrefix(t *testing.T) {
	got, err := NormalizePhone("+4691234567", "+47")
	require.NoError(t, err)
	assert.Equal(t, "+4691234567", got)
}

func TestNormalizePhoneStripsWhitespace(t *testing.T) {
	got, err := NormalizePhone("  912 34 567 ", "+47")
	require.NoError(t, err)
	assert.Equal(t, "+4791234567", got)
}

func TestNormalizePhoneRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "+47abc", "++4791234567"} {
		_, err := NormalizePhone(raw, "+47")
		if !errors.Is(err, domerrors.ErrInvalidPhone) {
			t.Errorf("NormalizePhone(%q) = %v, want ErrInvalidPhone", raw, err)
		}
	}
}
