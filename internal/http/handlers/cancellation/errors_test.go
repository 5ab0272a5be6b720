package cancellation

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	service "github.com/magabrotheeeer/subscription-cancellation/internal/services/cancellation"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: fmt.Errorf("%w: bad", service.ErrValidation), wantStatus: http.StatusBadRequest},
		{name: "forbidden", err: fmt.Errorf("%w: other user", service.ErrForbidden), wantStatus: http.StatusForbidden},
		{name: "not found", err: fmt.Errorf("%w: missing", service.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "storage", err: fmt.Errorf("%w: down", service.ErrStorage), wantStatus: http.StatusInternalServerError},
		{
			name:       "answers saved",
			err:        &service.CompleteError{AnswersSaved: true, Err: fmt.Errorf("%w: down", service.ErrStorage)},
			wantStatus: http.StatusInternalServerError,
		},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := StatusFor(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestStatusFor_StorageDetailsHidden(t *testing.T) {
	_, msg := StatusFor(fmt.Errorf("%w: dial tcp 10.0.0.1:5432", service.ErrStorage))
	assert.Equal(t, "internal error", msg)
}
