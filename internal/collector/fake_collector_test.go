package collector

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordedCall is one request seen by fakeCollector
type recordedCall struct {
	Host            string
	Path            string
	Method          string
	RunID           string
	Query           string
	Body            []byte
	ContentEncoding string
	HTTPMethod      string
}

// reply is a canned collector response
type reply struct {
	Status  int
	Body    string
	Headers map[string]string
	Err     error
}

// fakeCollector is an http.RoundTripper answering by remote method name
type fakeCollector struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []recordedCall
}

func newFakeCollector(replies map[string]reply) *fakeCollector {
	return &fakeCollector{replies: replies}
}

func (f *fakeCollector) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body.Close()

	segments := strings.Split(req.URL.Path, "/")
	method := segments[len(segments)-1]

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{
		Host:            req.URL.Hostname(),
		Path:            req.URL.Path,
		Method:          method,
		RunID:           req.URL.Query().Get("run_id"),
		Query:           req.URL.RawQuery,
		Body:            body,
		ContentEncoding: req.Header.Get("Content-Encoding"),
		HTTPMethod:      req.Method,
	})
	r, ok := f.replies[method]
	f.mu.Unlock()

	if !ok {
		r = reply{Status: http.StatusNotFound}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Status == 0 {
		r.Status = http.StatusOK
	}

	header := make(http.Header)
	for k, v := range r.Headers {
		header.Set(k, v)
	}
	return &http.Response{
		StatusCode:    r.Status,
		Status:        http.StatusText(r.Status),
		Header:        header,
		Body:          io.NopCloser(bytes.NewBufferString(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}, nil
}

func (f *fakeCollector) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func (f *fakeCollector) CallsTo(method string) []recordedCall {
	var out []recordedCall
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestChannel(t *testing.T, fake *fakeCollector, cfg ChannelConfig) *Channel {
	t.Helper()
	if cfg.Host == "" {
		cfg.Host = "collector.example.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 80
	}
	if cfg.LicenseKey == "" {
		cfg.LicenseKey = "ABC123"
	}
	ch := NewChannel(cfg, WithTransport(fake))
	require.NotNil(t, ch)
	return ch
}
