package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "bare",
			err:  Validation("amount must be positive"),
			want: "VALIDATION: amount must be positive",
		},
		{
			name: "owner",
			err:  InsufficientFunds("owner-1", 700, 300),
			want: "INSUFFICIENT_FUNDS: requested 700 exceeds available 300 (owner=owner-1)",
		},
		{
			name: "signature",
			err:  DuplicateSignature("sig-1"),
			want: "DUPLICATE_SIGNATURE: transaction signature already registered (signature=sig-1)",
		},
		{
			name: "owner and signature with cause",
			err:  InvalidState("locked %d < amount %d", 1, 2).WithOwner("o").WithSignature("s").Wrap(errors.New("boom")),
			want: "INVALID_STATE: locked 1 < amount 2 (owner=o, signature=s): boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("request withdrawal: %w", InsufficientFunds("o", 2, 1))

	assert.True(t, IsInsufficientFunds(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, CodeInsufficientFunds, CodeOf(err))
}

func TestPredicates_NonFaultError(t *testing.T) {
	err := errors.New("plain")

	assert.Equal(t, Code(""), CodeOf(err))
	assert.False(t, IsTransient(err))
	assert.False(t, IsTransient(nil))
}

func TestTransient_Unwrap(t *testing.T) {
	cause := errors.New("database is locked")
	err := Transient("store busy", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsTransient(err))
}

func TestWithOwner_DoesNotMutateOriginal(t *testing.T) {
	base := Conflict("vault address mismatch")
	annotated := base.WithOwner("owner-1")

	assert.Empty(t, base.Owner)
	assert.Equal(t, "owner-1", annotated.Owner)
}

func TestUnauthorized(t *testing.T) {
	err := Unauthorized("prog")
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "program prog is not authorized")
}
