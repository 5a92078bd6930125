package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenErrors_WrapBothKinds(t *testing.T) {
	for _, sub := range []error{ErrTokenMalformed, ErrTokenExpired, ErrTokenWrongScope} {
		err := fmt.Errorf("%w: %w", ErrInvalidToken, sub)
		assert.True(t, errors.Is(err, ErrInvalidToken))
		assert.True(t, errors.Is(err, sub))
	}
}

func TestSentinels_AreDistinct(t *testing.T) {
	all := []error{
		ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized, ErrUnavailable,
		ErrInvalidToken, ErrTokenMalformed, ErrTokenExpired, ErrTokenWrongScope, ErrCorruptHash,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v must not match %v", a, b)
			}
		}
	}
}
