package models_test

import (
	"net/http"
	"testing"

	"github.com/open-rail/trackd-go/internal/models"
)

func TestAppErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    *models.AppError
		code   string
		status int
	}{
		{models.ErrNotFound("no track Z"), "not_found", http.StatusNotFound},
		{models.ErrBadRequest("speed must be 0..127"), "bad_request", http.StatusBadRequest},
		{models.ErrInternal("boom"), "internal", http.StatusInternalServerError},
	}
	for _, c := range cases {
		if c.err.Code != c.code || c.err.Status != c.status {
			t.Errorf("%v: code/status = %s/%d, want %s/%d",
				c.err, c.err.Code, c.err.Status, c.code, c.status)
		}
		if c.err.Error() != c.err.Message {
			t.Errorf("Error() = %q, want the message %q", c.err.Error(), c.err.Message)
		}
	}
}
