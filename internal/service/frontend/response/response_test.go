package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	tests := []struct {
		name    string
		err     *ErrResponse
		status  int
		code    string
		message string
	}{
		{name: "BadRequest", err: BadRequest("domain is required"), status: http.StatusBadRequest, code: CodeBadRequest, message: "domain is required"},
		{name: "Forbidden", err: Forbidden("requires Pro license"), status: http.StatusForbidden, code: CodeFeatureNotLicense, message: "requires Pro license"},
		{name: "Internal", err: Internal(errors.New("open /data/settings.json: permission denied")), status: http.StatusInternalServerError, code: CodeInternal, message: "internal server error"},
		{name: "Custom", err: New(http.StatusNotFound, CodeNotFound, "no such route"), status: http.StatusNotFound, code: CodeNotFound, message: "no such route"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			Write(w, r, tt.err)

			require.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, map[string]string{"code": tt.code, "message": tt.message}, body)
		})
	}
}
