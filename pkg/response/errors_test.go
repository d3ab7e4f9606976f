package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apimeter/apimeter/pkg/response"
)

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("known http error keeps status and code", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		response.Error(rec, response.ErrNotFound)

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_found", body["code"])
	})

	t.Run("wrapped http error is unwrapped", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		response.Error(rec, errors.Join(errors.New("lookup failed"), response.ErrConflict))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown error becomes opaque 500", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		response.Error(rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	response.JSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"abc"}`, rec.Body.String())
}
