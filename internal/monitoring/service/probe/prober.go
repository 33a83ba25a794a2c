package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

const (
	defaultMaxRedirects = 5
	defaultUserAgent    = "pulsewatch-probe/1.0"
	maxBodyBytes        = 10 << 20
)

var errTooManyRedirects = errors.New("too many redirects")

// Prober performs one bounded HTTP(S) probe against an endpoint. It is a pure
// function of the endpoint config: no repository writes, no shared state.
type Prober struct {
	MaxRedirects int
	UserAgent    string
}

func New() *Prober {
	return &Prober{MaxRedirects: defaultMaxRedirects, UserAgent: defaultUserAgent}
}

// Check probes ep.URL once and classifies the outcome. The request is bounded
// by ep.TimeoutSeconds; phase timings are nil for phases that did not occur
// (e.g. no TLS handshake on plain http).
func (p *Prober) Check(ctx context.Context, ep model.Endpoint) model.HealthCheck {
	hc := model.HealthCheck{
		ID:         uuid.NewString(),
		EndpointID: ep.ID,
		CheckedAt:  time.Now().UTC(),
	}

	timeout := time.Duration(ep.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var timings phaseTimings
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, timings.trace()), http.MethodGet, ep.URL, nil)
	if err != nil {
		hc.ErrorType = model.ErrorConnection
		hc.ErrorMessage = err.Error()
		return hc
	}
	req.Header.Set("User-Agent", p.UserAgent)

	maxRedirects := p.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}
	client := &http.Client{
		// fresh connections so DNS/connect/TLS phases are observable per probe
		Transport: &http.Transport{DisableKeepAlives: true},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}

	start := time.Now()
	resp, err := client.Do(req)
	timings.fill(&hc)
	if err != nil {
		hc.ErrorType, hc.ErrorMessage = classify(err)
		return hc
	}
	defer resp.Body.Close()

	// a probe is not successful until the body is fully read; a deadline
	// hit mid-body classifies as a timeout like any other
	size, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		hc.ErrorType, hc.ErrorMessage = classify(err)
		status := resp.StatusCode
		hc.StatusCode = &status
		hc.ResponseSizeBytes = &size
		return hc
	}
	elapsed := durationMs(time.Since(start))
	hc.ResponseTimeMs = &elapsed
	status := resp.StatusCode
	hc.StatusCode = &status
	hc.ResponseSizeBytes = &size
	hc.ResponseHeaders = headerSubset(resp.Header)

	expected := ep.ExpectedStatusCode
	if expected == 0 {
		expected = http.StatusOK
	}
	if status == expected {
		hc.IsSuccessful = true
	} else {
		hc.ErrorType = model.ErrorUnexpectedStatus
		hc.ErrorMessage = fmt.Sprintf("expected status %d, got %d", expected, status)
	}
	return hc
}

// phaseTimings collects per-phase marks from httptrace callbacks. Callbacks
// for a single request run sequentially, so no locking is needed.
type phaseTimings struct {
	dnsStart, dnsDone         time.Time
	connectStart, connectDone time.Time
	tlsStart, tlsDone         time.Time
}

func (t *phaseTimings) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart:     func(httptrace.DNSStartInfo) { t.dnsStart = time.Now() },
		DNSDone:      func(httptrace.DNSDoneInfo) { t.dnsDone = time.Now() },
		ConnectStart: func(string, string) { t.connectStart = time.Now() },
		ConnectDone:  func(string, string, error) { t.connectDone = time.Now() },
		TLSHandshakeStart: func() { t.tlsStart = time.Now() },
		TLSHandshakeDone:  func(tls.ConnectionState, error) { t.tlsDone = time.Now() },
	}
}

func (t *phaseTimings) fill(hc *model.HealthCheck) {
	if !t.dnsStart.IsZero() && !t.dnsDone.IsZero() {
		ms := durationMs(t.dnsDone.Sub(t.dnsStart))
		hc.DNSLookupTimeMs = &ms
	}
	if !t.connectStart.IsZero() && !t.connectDone.IsZero() {
		ms := durationMs(t.connectDone.Sub(t.connectStart))
		hc.TCPConnectTimeMs = &ms
	}
	if !t.tlsStart.IsZero() && !t.tlsDone.IsZero() {
		ms := durationMs(t.tlsDone.Sub(t.tlsStart))
		hc.TLSHandshakeTimeMs = &ms
	}
}

// classify maps a transport error to the probe failure taxonomy. Order
// matters: redirect and timeout checks come before the coarser buckets.
func classify(err error) (model.ErrorType, string) {
	if errors.Is(err, errTooManyRedirects) {
		return model.ErrorTooManyRedirects, errTooManyRedirects.Error()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.ErrorTimeout, err.Error()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.ErrorDNS, dnsErr.Error()
	}
	if isTLSError(err) {
		return model.ErrorTLS, err.Error()
	}
	return model.ErrorConnection, err.Error()
}

func isTLSError(err error) bool {
	var (
		certInvalid   x509.CertificateInvalidError
		hostnameErr   x509.HostnameError
		unknownAuth   x509.UnknownAuthorityError
		recordHeader  tls.RecordHeaderError
		certVerifyErr *tls.CertificateVerificationError
	)
	return errors.As(err, &certInvalid) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &recordHeader) ||
		errors.As(err, &certVerifyErr)
}

// headerAllowlist is the subset of response headers worth persisting.
var headerAllowlist = []string{
	"Content-Type",
	"Content-Length",
	"Server",
	"Date",
	"Cache-Control",
	"Last-Modified",
	"Etag",
}

func headerSubset(h http.Header) map[string]string {
	out := make(map[string]string)
	for _, k := range headerAllowlist {
		if v := h.Get(k); v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
