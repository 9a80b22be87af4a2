package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByKind(t *testing.T) {
	assert.True(t, errors.Is(ErrOpportunityNotFound, ErrNotFound))
	assert.True(t, errors.Is(fmt.Errorf("load: %w", ErrNotEnrolled), ErrNotFound))
	assert.False(t, errors.Is(ErrNotEnrolled, ErrDuplicateBid))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindWindowClosed, KindOf(newError(KindWindowClosed, "closed", nil)))
	assert.Equal(t, KindStoreUnavailable, KindOf(errors.New("driver exploded")))
}

func TestError_Message(t *testing.T) {
	err := newError(KindStoreUnavailable, "store error", errors.New("conn reset"))
	assert.Equal(t, "store error: conn reset", err.Error())
	assert.ErrorContains(t, ErrCapacityInvalid, "capacity")
}
