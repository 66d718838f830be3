package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/STRUT/internal/config"
	"github.com/copyleftdev/STRUT/internal/logging"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Optimization.PopulationSize = 40
	cfg.Optimization.Generations = 15
	cfg.Optimization.Seed = 42
	cfg.Optimization.WorkerCount = 1

	logger := logging.New(logging.FatalLevel, io.Discard)
	srv := NewServer(cfg, logger, NewMetrics(prometheus.NewRegistry()))

	r := chi.NewRouter()
	srv.RegisterRoutes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestOptimizeRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp, started := postJSON(t, ts.URL+"/api/v1/optimize", map[string]interface{}{
		"population_size": 12,
		"generations":     6,
		"seed":            7,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	id, ok := started["optimization_id"].(string)
	require.True(t, ok, "response should carry an optimization id")
	assert.Equal(t, "pending", started["status"])

	// The run is tiny; wait for it to finish.
	var status map[string]interface{}
	require.Eventually(t, func() bool {
		var r *http.Response
		r, status = getJSON(t, ts.URL+"/api/v1/status/"+id)
		return r.StatusCode == http.StatusOK && status["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1.0, status["progress"])

	best, ok := status["best_design"].(map[string]interface{})
	require.True(t, ok, "completed run exposes the best design")
	length := best["length_cm"].(float64)
	angle := best["angle_deg"].(float64)
	assert.GreaterOrEqual(t, length, 50.0)
	assert.LessOrEqual(t, length, 120.0)
	assert.GreaterOrEqual(t, angle, 10.0)
	assert.LessOrEqual(t, angle, 30.0)
	assert.Greater(t, best["fitness"].(float64), -1000.0)

	generations, ok := status["generations"].([]interface{})
	require.True(t, ok, "completed run exposes the convergence series")
	require.Len(t, generations, 6)

	first := generations[0].(map[string]interface{})
	assert.Equal(t, 1.0, first["generation"])
	assert.LessOrEqual(t, first["average_fitness"].(float64), first["best_fitness"].(float64))
}

func TestStatusUnknownID(t *testing.T) {
	ts := newTestServer(t)

	resp, body := getJSON(t, ts.URL+"/api/v1/status/opt_missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "not found")
}

func TestOptimizeRejectsInvalidConfig(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		body    map[string]interface{}
		wantErr string
	}{
		{
			name:    "inverted bounds",
			body:    map[string]interface{}{"bounds": [][]float64{{120, 50}, {10, 30}}},
			wantErr: "inverted bounds",
		},
		{
			name:    "wrong dimensionality",
			body:    map[string]interface{}{"bounds": [][]float64{{50, 120}}},
			wantErr: "exactly 2 genes",
		},
		{
			name:    "population too small",
			body:    map[string]interface{}{"population_size": 2},
			wantErr: "population size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts.URL+"/api/v1/optimize", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, body["error"], tt.wantErr)
		})
	}
}

func TestCancelUnknownID(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/optimization/opt_missing", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJSONRPCErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		payload  string
		wantCode float64
	}{
		{
			name:     "parse error",
			payload:  `{not json`,
			wantCode: -32700,
		},
		{
			name:     "invalid version",
			payload:  `{"jsonrpc": "1.0", "id": 1, "method": "optimization.start"}`,
			wantCode: -32600,
		},
		{
			name:     "method not found",
			payload:  `{"jsonrpc": "2.0", "id": 1, "method": "optimization.evolve"}`,
			wantCode: -32601,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader([]byte(tt.payload)))
			require.NoError(t, err)
			defer resp.Body.Close()

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

			rpcErr, ok := body["error"].(map[string]interface{})
			require.True(t, ok, "expected a JSON-RPC error object")
			assert.Equal(t, tt.wantCode, rpcErr["code"])
		})
	}
}

func TestJSONRPCStartAndStatus(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/rpc", map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "optimization.start",
		"params": map[string]interface{}{
			"population_size": 10,
			"generations":     4,
			"seed":            3,
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok, "start should succeed: %v", body)
	id := result["optimization_id"].(string)

	require.Eventually(t, func() bool {
		_, statusBody := postJSON(t, ts.URL+"/rpc", map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      2,
			"method":  "optimization.status",
			"params":  map[string]interface{}{"optimization_id": id},
		})
		statusResult, ok := statusBody["result"].(map[string]interface{})
		return ok && statusResult["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCancelCompletedRunFails(t *testing.T) {
	ts := newTestServer(t)

	_, started := postJSON(t, ts.URL+"/api/v1/optimize", map[string]interface{}{
		"population_size": 8,
		"generations":     2,
	})
	id := started["optimization_id"].(string)

	require.Eventually(t, func() bool {
		_, status := getJSON(t, ts.URL+"/api/v1/status/"+id)
		return status["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/optimization/%s", ts.URL, id), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "cannot cancel")
}
