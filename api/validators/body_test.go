package validators

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Name  string  `json:"name" validate:"required,max=4"`
	Speed float64 `json:"speed" validate:"gt=0"`
}

func decode(t *testing.T, s string) error {
	t.Helper()
	var b body
	return DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(s)), &b)
}

func TestDecodeJSONBody(t *testing.T) {
	require.NoError(t, decode(t, `{"name":"ab","speed":2}`))

	err := decode(t, `{"name":"ab","speed":2,"x":1}`)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, http.StatusBadRequest, verr.Status)

	err = decode(t, `{"name":"toolong","speed":0}`)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, http.StatusUnprocessableEntity, verr.Status)
	assert.Equal(t, "must be at most 4", verr.Details["name"])
	assert.Equal(t, "must be greater than 0", verr.Details["speed"])
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusConflict, errors.New("boom"))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"error":"boom"}`, rr.Body.String())
}
