package melinda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRecordJSON = `{"leader":"00000cam^a2200000^i^4500","fields":[` +
	`{"tag":"001","value":"123"},` +
	`{"tag":"245","ind1":"1","ind2":"0","subfields":[{"code":"a","value":"Title"}]}]}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRecordClient(t *testing.T, srv *httptest.Server, cataloger string) *RecordClient {
	t.Helper()
	c, err := NewRecordClient(Config{
		BaseURL:   srv.URL,
		Username:  "foo",
		Password:  "bar",
		Cataloger: cataloger,
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNormalizeBaseURL(t *testing.T) {
	got, err := normalizeBaseURL("  http://melinda.example/api?x=1#frag ")
	require.NoError(t, err)
	assert.Equal(t, "http://melinda.example/api/", got)

	got, err = normalizeBaseURL("https://melinda.example/")
	require.NoError(t, err)
	assert.Equal(t, "https://melinda.example/", got)

	_, err = normalizeBaseURL("")
	assert.Error(t, err)
	_, err = normalizeBaseURL("melinda.example")
	assert.Error(t, err)
}

func TestBasicAuthorization(t *testing.T) {
	assert.Equal(t, "Basic Zm9vOmJhcg==", BasicAuthorization("foo", "bar"))
}

func TestNewExecutor_Options(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	exec, err := newExecutor(Config{BaseURL: "http://x"}, "test", []Option{
		WithHTTPClient(hc),
		WithRateLimit(5, 0),
		nil,
	})
	require.NoError(t, err)
	assert.Same(t, hc, exec.http)
	require.NotNil(t, exec.limiter)
	assert.Equal(t, 1, exec.limiter.Burst())
	assert.Equal(t, defaultUserAgent, exec.userAgent)

	exec, err = newExecutor(Config{BaseURL: "http://x", UserAgent: "importer/1.0"}, "test", []Option{WithTimeout(2 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, exec.timeout)
	assert.Zero(t, exec.http.Timeout)
	transport, ok := exec.http.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, transport.ResponseHeaderTimeout)
	assert.Nil(t, exec.limiter)
	assert.Equal(t, "importer/1.0", exec.userAgent)

	_, err = newExecutor(Config{BaseURL: "http://x"}, "test", []Option{WithHTTPClient(nil)})
	assert.Error(t, err)
	_, err = newExecutor(Config{BaseURL: "http://x"}, "test", []Option{WithTimeout(-1)})
	assert.Error(t, err)
}

func TestExecutor_SendsHeaders(t *testing.T) {
	var got http.Header
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, http.StatusOK, JobStatus{CorrelationID: "abc"})
	})
	c := newTestRecordClient(t, srv, "")

	_, err := c.GetBulkState(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, "Basic Zm9vOmJhcg==", got.Get("Authorization"))
	assert.Equal(t, defaultUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestExecutor_UnexpectedStatus(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	c := newTestRecordClient(t, srv, "")

	_, err := c.GetBulkState(context.Background(), "abc")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTeapot, apiErr.Status)
	assert.False(t, apiErr.Transport())
}

func TestExecutor_TranslatedStatusWinsOverAccepted(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "down"})
	})
	c := newTestRecordClient(t, srv, "")

	_, err := c.Read(context.Background(), "123")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, serviceUnavailableMessage, apiErr.Message)
}

func TestExecutor_TransportFailureIsInternalError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestRecordClient(t, srv, "")
	srv.Close()

	_, err := c.GetBulkState(context.Background(), "abc")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, internalErrorMessage, apiErr.Message)
	assert.True(t, apiErr.Transport())
}

func TestExecutor_DecodeFailureIsInternalError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{not-json"))
	})
	c := newTestRecordClient(t, srv, "")

	_, err := c.GetBulkState(context.Background(), "abc")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.True(t, apiErr.Transport())
	assert.Contains(t, apiErr.Unwrap().Error(), "decode response")
}

func TestExecutor_TimeoutBoundsJSONCalls(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, http.StatusOK, JobStatus{CorrelationID: "abc"})
	})
	c, err := NewRecordClient(Config{BaseURL: srv.URL, Username: "foo", Password: "bar"}, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.GetBulkState(context.Background(), "abc")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.True(t, apiErr.Transport())
}
