package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestFromStatus(t *testing.T) {
	assert.Equal(t, CodeNotFound, FromStatus("apollo", http.StatusNotFound, "").Code)
	assert.Equal(t, CodeConflict, FromStatus("hubspot", http.StatusConflict, "").Code)
	assert.Equal(t, CodeAPIError, FromStatus("hubspot", http.StatusInternalServerError, "boom").Code)
}

func TestFromTransport(t *testing.T) {
	assert.Equal(t, CodeTimeout, FromTransport("hubspot", context.DeadlineExceeded).Code)
	assert.Equal(t, CodeTimeout, FromTransport("hubspot", fmt.Errorf("do: %w", timeoutErr{})).Code)
	assert.Equal(t, CodeConnection, FromTransport("hubspot", errors.New("connection refused")).Code)
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("update: %w", FromStatus("hubspot", 500, "x"))
	assert.Equal(t, CodeAPIError, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, CodeAPIError, CodeOf(errors.New("plain")))
}

func TestAs(t *testing.T) {
	assert.Nil(t, As("x", nil))
	e := As("resend", errors.New("plain"))
	assert.Equal(t, "resend", e.Service)
	assert.Equal(t, CodeAPIError, e.Code)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "hubspot API_ERROR (500): boom", FromStatus("hubspot", 500, "boom").Error())
	assert.Equal(t, "apollo TIMEOUT: context deadline exceeded", FromTransport("apollo", context.DeadlineExceeded).Error())
}
