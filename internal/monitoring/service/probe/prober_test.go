package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEndpoint(url string) model.Endpoint {
	return model.Endpoint{
		ID:                 1,
		URL:                url,
		ExpectedStatusCode: 200,
		TimeoutSeconds:     5,
	}
}

func TestCheckSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	hc := New().Check(context.Background(), testEndpoint(srv.URL))
	assert.True(t, hc.IsSuccessful)
	assert.Equal(t, model.ErrorType(""), hc.ErrorType)
	require.NotNil(t, hc.StatusCode)
	assert.Equal(t, 200, *hc.StatusCode)
	require.NotNil(t, hc.ResponseTimeMs)
	assert.Greater(t, *hc.ResponseTimeMs, 0.0)
	require.NotNil(t, hc.ResponseSizeBytes)
	assert.Equal(t, int64(2), *hc.ResponseSizeBytes)
	assert.Equal(t, "text/plain", hc.ResponseHeaders["Content-Type"])
	// plain http: no TLS handshake phase
	assert.Nil(t, hc.TLSHandshakeTimeMs)
	require.NotNil(t, hc.TCPConnectTimeMs)
	assert.NotEmpty(t, hc.ID)
}

func TestCheckUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hc := New().Check(context.Background(), testEndpoint(srv.URL))
	assert.False(t, hc.IsSuccessful)
	assert.Equal(t, model.ErrorUnexpectedStatus, hc.ErrorType)
	require.NotNil(t, hc.StatusCode)
	assert.Equal(t, 500, *hc.StatusCode)
	// response completed, so a time was measured
	assert.NotNil(t, hc.ResponseTimeMs)
	assert.Contains(t, hc.ErrorMessage, "expected status 200, got 500")
}

func TestCheckExpectedNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ep := testEndpoint(srv.URL)
	ep.ExpectedStatusCode = 204
	hc := New().Check(context.Background(), ep)
	assert.True(t, hc.IsSuccessful)
}

func TestCheckTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer srv.Close()

	ep := testEndpoint(srv.URL)
	ep.TimeoutSeconds = 1
	hc := New().Check(context.Background(), ep)
	assert.False(t, hc.IsSuccessful)
	assert.Equal(t, model.ErrorTimeout, hc.ErrorType)
	// no completed response: latency must stay absent, not zero
	assert.Nil(t, hc.ResponseTimeMs)
	assert.Nil(t, hc.StatusCode)
}

func TestCheckTimeoutMidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "64")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		time.Sleep(3 * time.Second)
	}))
	defer srv.Close()

	ep := testEndpoint(srv.URL)
	ep.TimeoutSeconds = 1
	hc := New().Check(context.Background(), ep)
	// headers arrived but the body never finished: still a timeout
	assert.False(t, hc.IsSuccessful)
	assert.Equal(t, model.ErrorTimeout, hc.ErrorType)
	assert.Nil(t, hc.ResponseTimeMs)
	require.NotNil(t, hc.StatusCode)
	assert.Equal(t, 200, *hc.StatusCode)
}

func TestCheckConnectionRefused(t *testing.T) {
	// reserve a port, then close it so the connect is refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	hc := New().Check(context.Background(), testEndpoint(url))
	assert.False(t, hc.IsSuccessful)
	assert.Equal(t, model.ErrorConnection, hc.ErrorType)
	assert.NotEmpty(t, hc.ErrorMessage)
}

func TestCheckDNSFailure(t *testing.T) {
	hc := New().Check(context.Background(), testEndpoint("http://no-such-host.invalid/"))
	assert.False(t, hc.IsSuccessful)
	assert.Equal(t, model.ErrorDNS, hc.ErrorType)
}

func TestCheckTooManyRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL, http.StatusFound)
	}))
	defer srv.Close()

	hc := New().Check(context.Background(), testEndpoint(srv.URL))
	assert.False(t, hc.IsSuccessful)
	assert.Equal(t, model.ErrorTooManyRedirects, hc.ErrorType)
}

func TestCheckTLSFailure(t *testing.T) {
	// httptest TLS server uses a self-signed cert the prober will not trust
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	hc := New().Check(context.Background(), testEndpoint(srv.URL))
	assert.False(t, hc.IsSuccessful)
	assert.Equal(t, model.ErrorTLS, hc.ErrorType)
}
