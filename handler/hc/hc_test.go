package hc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pandodao/walletx/store/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	book := ledger.New(map[string]decimal.Decimal{"a": decimal.NewFromInt(3), "b": decimal.NewFromInt(4)})

	w := httptest.NewRecorder()
	Handler("1.0.0", "abc", book).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "abc", body["commit"])
	assert.Equal(t, "7", body["supply"])
	assert.NotEmpty(t, body["uptime"])
}
