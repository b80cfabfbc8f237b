package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrInvalidBid, "bid must be at least 120")
	assert.True(t, errors.Is(err, ErrInvalidBid))
	assert.False(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, "bid must be at least 120", err.Error())
	assert.Equal(t, "bid rejected", ErrInvalidBid.Message)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := Internal(sql.ErrConnDone, "failed to load book")
	appErr := FromError(wrapped)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.True(t, errors.Is(appErr, sql.ErrConnDone))

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, ErrInternal.Message, plain.Message)
}
