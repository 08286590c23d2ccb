package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	cause := errors.New("disk full")

	storageErr := fmt.Errorf("close ticket: %w", NewStorageError("save", cause))
	assert.True(t, IsStorage(storageErr))
	assert.False(t, IsPlatform(storageErr))
	assert.True(t, IsOperational(storageErr))
	assert.ErrorIs(t, storageErr, cause)

	platformErr := NewPlatformError("delete channel", cause)
	assert.True(t, IsPlatform(platformErr))
	assert.Equal(t, http.StatusBadGateway, ToDomainError(platformErr).HTTPStatus)

	notFound := NewNotFound("ticket", map[string]any{"ticket_id": "42"})
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsOperational(notFound))
	assert.False(t, IsOperational(NewTicketClosed("42")))
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
	assert.Equal(t, "", CodeOf(nil))
}
