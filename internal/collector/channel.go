package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/shared/agenterr"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ProtocolVersion is the collector protocol family spoken by the channel
const ProtocolVersion = 9

// ChannelConfig holds the collector endpoint settings
type ChannelConfig struct {
	Host       string
	Port       int
	LicenseKey string
	SSL        bool
	Encoding   Encoding
	Timeout    time.Duration
}

// Channel frames remote method calls as JSON POSTs to the collector.
// Every call uses a fresh connection. Only the host is mutable, and only
// through a collector redirect.
type Channel struct {
	mu   sync.RWMutex
	host string

	port       int
	licenseKey string
	scheme     string
	encoding   Encoding

	client  *resty.Client
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// ChannelOption configures a Channel
type ChannelOption func(*Channel)

// WithLogger sets the channel logger
func WithLogger(logger *zap.Logger) ChannelOption {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithMetrics records every call in metrics
func WithMetrics(metrics *monitoring.Metrics) ChannelOption {
	return func(c *Channel) {
		c.metrics = metrics
	}
}

// WithTransport replaces the HTTP transport, mainly for tests
func WithTransport(rt http.RoundTripper) ChannelOption {
	return func(c *Channel) {
		c.client.SetTransport(rt)
	}
}

// NewChannel creates a channel for the configured collector
func NewChannel(cfg ChannelConfig, opts ...ChannelOption) *Channel {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingIdentity
	}
	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}

	// Start from the clean pooled transport and disable reuse so each
	// invocation dials and closes its own connection.
	retryClient := retryablehttp.NewClient()
	transport := http.DefaultTransport
	if base, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok {
		clone := base.Clone()
		clone.DisableKeepAlives = true
		transport = clone
	}

	restyClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "AgentOS-Monitor/"+AgentVersion).
		SetTransport(transport)

	c := &Channel{
		host:       cfg.Host,
		port:       cfg.Port,
		licenseKey: cfg.LicenseKey,
		scheme:     scheme,
		encoding:   cfg.Encoding,
		client:     restyClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client.SetLogger(c.logger.Sugar())
	return c
}

// Host returns the current collector host
func (c *Channel) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// SetHost points the channel at a different collector host
func (c *Channel) SetHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = host
}

// MethodURI builds the request path and query for method
func (c *Channel) MethodURI(method string, runID *int64) string {
	uri := fmt.Sprintf("/agent_listener/%d/%s/%s?marshal_format=json", ProtocolVersion, c.licenseKey, method)
	if runID != nil {
		uri += "&run_id=" + strconv.FormatInt(*runID, 10)
	}
	return uri
}

func (c *Channel) url(method string, runID *int64) string {
	return fmt.Sprintf("%s://%s:%d%s", c.scheme, c.Host(), c.port, c.MethodURI(method, runID))
}

// Invoke calls method on the collector with args as positional parameters.
// runID is attached as a query parameter when non-nil.
func (c *Channel) Invoke(ctx context.Context, method string, runID *int64, args ...any) (result Result, err error) {
	timer := monitoring.NewTimer(c.metrics, method)
	defer func() { timer.Stop(err) }()

	payload, err := marshalArgs(args)
	if err != nil {
		return Result{}, fmt.Errorf("%s: encode arguments: %w", method, err)
	}
	body, err := compress(c.encoding, payload)
	if err != nil {
		return Result{}, fmt.Errorf("%s: compress body: %w", method, err)
	}

	url := c.url(method, runID)
	c.logger.Debug("invoking collector method",
		zap.String("method", method),
		zap.String("host", c.Host()),
		zap.Int("payload_bytes", len(payload)),
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", string(c.encoding)).
		SetBody(body).
		Post(url)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", method, err)
	}

	if !resp.IsSuccess() {
		return Result{}, &agenterr.TransportError{Method: method, Status: resp.StatusCode()}
	}

	reply, err := decompress(resp.Header().Get("Content-Encoding"), resp.Body())
	if err != nil {
		return Result{}, &agenterr.ProtocolError{Method: method, Reason: "undecodable response body", Err: err}
	}
	return parseResponse(method, reply)
}

// parseResponse unpacks the {"exception": ...} / {"return_value": ...} envelope
func parseResponse(method string, body []byte) (Result, error) {
	var envelope map[string]json.RawMessage
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return Result{}, &agenterr.ProtocolError{Method: method, Reason: "invalid json response", Err: err}
	}

	if raw, ok := envelope["exception"]; ok {
		var exc struct {
			ErrorType *string `json:"error_type"`
			Message   *string `json:"message"`
		}
		if err := sonic.Unmarshal(raw, &exc); err != nil || exc.ErrorType == nil || exc.Message == nil {
			return Result{}, &agenterr.ProtocolError{Method: method, Reason: "unknown exception: " + string(raw), Err: err}
		}
		return Result{}, agenterr.NewRemote(method, *exc.ErrorType, *exc.Message)
	}

	if raw, ok := envelope["return_value"]; ok {
		return Result{raw: raw}, nil
	}

	return Result{}, &agenterr.ProtocolError{Method: method, Reason: "unexpected response format"}
}

// Result is the undecoded return_value of a remote call
type Result struct {
	raw json.RawMessage
}

// NewResult wraps a raw JSON value
func NewResult(raw []byte) Result {
	return Result{raw: raw}
}

// Raw returns the JSON text of the return value
func (r Result) Raw() []byte {
	return r.raw
}

// IsNull reports whether the collector returned null
func (r Result) IsNull() bool {
	trimmed := bytes.TrimSpace(r.raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Decode unmarshals the return value into v
func (r Result) Decode(v any) error {
	return sonic.Unmarshal(r.raw, v)
}
