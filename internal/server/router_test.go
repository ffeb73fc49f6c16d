package server_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/server/servertest"
)

func TestHealthAndReady(t *testing.T) {
	stack := servertest.New(t)

	resp, err := http.Get(stack.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	resp, err = http.Get(stack.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status    string `json:"status"`
		WSClients int    `json:"ws_clients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body.Status)
	assert.Zero(t, body.WSClients)
}

func TestReadyReportsDatabaseDown(t *testing.T) {
	stack := servertest.New(t)
	require.NoError(t, stack.DB.Close())

	resp, err := http.Get(stack.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCatalogRoutesNeedSearcher(t *testing.T) {
	stack := servertest.New(t)
	resp, err := http.Get(stack.URL + "/catalog/search?q=dune")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
