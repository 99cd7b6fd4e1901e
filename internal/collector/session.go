package collector

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/shared/agenterr"
	"go.uber.org/zap"
)

// Remote method names used by the session
const (
	MethodRedirectHost = "get_redirect_host"
	MethodConnect      = "connect"
	MethodShutdown     = "shutdown"
)

// Connect response fields consumed by the session
const (
	fieldRunID        = "agent_run_id"
	fieldReportPeriod = "data_report_period"
)

var errNullValue = errors.New("value is null")

// SessionState is the lifecycle state of a collector session
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of the state
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Session owns the run id issued by the collector. The run id is set if and
// only if the session is connected. Connect and Shutdown are the only
// writers; every accessor returns a consistent snapshot.
type Session struct {
	channel  *Channel
	env      Environment
	settings map[string]any
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu           sync.RWMutex
	state        SessionState
	runID        int64
	config       Configuration
	reportPeriod time.Duration
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSettings sets the local settings merged into the Configuration
func WithSettings(settings map[string]any) SessionOption {
	return func(s *Session) {
		s.settings = settings
	}
}

// WithSessionLogger sets the session logger
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithSessionMetrics tracks connection state in metrics
func WithSessionMetrics(metrics *monitoring.Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = metrics
	}
}

// NewSession creates a disconnected session
func NewSession(channel *Channel, env Environment, opts ...SessionOption) *Session {
	s := &Session{
		channel: channel,
		env:     env,
		logger:  zap.NewNop(),
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the lifecycle state
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Connected reports whether the session holds a run id
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// RunID returns the current run id; ok is false while disconnected
func (s *Session) RunID() (runID int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateConnected {
		return 0, false
	}
	return s.runID, true
}

// Configuration returns the merged configuration, empty while disconnected
func (s *Session) Configuration() Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// ReportPeriod returns the collector's data report period, zero while disconnected
func (s *Session) ReportPeriod() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reportPeriod
}

// AppNames returns the monitored application names
func (s *Session) AppNames() []string {
	return append([]string(nil), s.env.AppNames...)
}

// Connect performs the redirect and connect handshake. On failure the
// session stays disconnected and the caller decides whether to retry.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return agenterr.Usage("connect", agenterr.ErrAlreadyConnected)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	runID, period, config, err := s.handshake(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateDisconnected
		s.logger.Warn("collector connect failed",
			zap.String("host", s.channel.Host()),
			zap.Error(err),
		)
		return err
	}

	s.state = StateConnected
	s.runID = runID
	s.reportPeriod = period
	s.config = config
	s.metrics.SetConnected(true)

	s.logger.Info("connected to collector",
		zap.String("host", s.channel.Host()),
		zap.Int64("run_id", runID),
		zap.Duration("report_period", period),
		zap.Strings("app_names", s.env.AppNames),
	)
	return nil
}

func (s *Session) handshake(ctx context.Context) (int64, time.Duration, Configuration, error) {
	redirect, err := s.channel.Invoke(ctx, MethodRedirectHost, nil)
	if err != nil {
		return 0, 0, Configuration{}, err
	}
	if !redirect.IsNull() {
		var host string
		if err := redirect.Decode(&host); err != nil {
			return 0, 0, Configuration{}, &agenterr.ProtocolError{Method: MethodRedirectHost, Reason: "invalid redirect host", Err: err}
		}
		if host != "" {
			s.channel.SetHost(host)
			s.metrics.IncRedirects()
			s.logger.Info("collector redirection", zap.String("host", host))
		}
	}

	result, err := s.channel.Invoke(ctx, MethodConnect, nil, s.env.StartOptions())
	if err != nil {
		return 0, 0, Configuration{}, err
	}
	return parseConnectResponse(result, s.settings)
}

func parseConnectResponse(result Result, settings map[string]any) (int64, time.Duration, Configuration, error) {
	var fields map[string]json.RawMessage
	if err := result.Decode(&fields); err != nil || fields == nil {
		return 0, 0, Configuration{}, &agenterr.ProtocolError{Method: MethodConnect, Reason: "connect response is not an object", Err: err}
	}

	rawRunID, ok := fields[fieldRunID]
	if !ok {
		return 0, 0, Configuration{}, &agenterr.ProtocolError{Method: MethodConnect, Reason: "missing agent run id"}
	}
	var runID int64
	if err := decodeRequired(rawRunID, &runID); err != nil {
		return 0, 0, Configuration{}, &agenterr.ProtocolError{Method: MethodConnect, Reason: "invalid agent run id", Err: err}
	}

	rawPeriod, ok := fields[fieldReportPeriod]
	if !ok {
		return 0, 0, Configuration{}, &agenterr.ProtocolError{Method: MethodConnect, Reason: "missing data report period"}
	}
	var seconds int64
	if err := decodeRequired(rawPeriod, &seconds); err != nil {
		return 0, 0, Configuration{}, &agenterr.ProtocolError{Method: MethodConnect, Reason: "invalid data report period", Err: err}
	}

	remote := make(map[string]any, len(fields))
	for key, raw := range fields {
		if key == fieldRunID || key == fieldReportPeriod {
			continue
		}
		var value any
		if err := NewResult(raw).Decode(&value); err != nil {
			return 0, 0, Configuration{}, &agenterr.ProtocolError{Method: MethodConnect, Reason: "invalid value for " + key, Err: err}
		}
		remote[key] = value
	}

	return runID, time.Duration(seconds) * time.Second, NewConfiguration(settings, remote), nil
}

// decodeRequired decodes a field that must carry a non-null value
func decodeRequired(raw []byte, v any) error {
	result := NewResult(raw)
	if result.IsNull() {
		return errNullValue
	}
	return result.Decode(v)
}

// Invoke calls a per-session method with the current run id attached
func (s *Session) Invoke(ctx context.Context, method string, args ...any) (Result, error) {
	runID, ok := s.RunID()
	if !ok {
		return Result{}, agenterr.Usage(method, agenterr.ErrNotConnected)
	}
	return s.channel.Invoke(ctx, method, &runID, args...)
}

// Shutdown tells the collector the run is over. Failures of the remote call
// are logged and discarded; the run id is always cleared. Shutdown of a
// disconnected session is a no-op.
func (s *Session) Shutdown(ctx context.Context) {
	s.mu.RLock()
	if s.state != StateConnected {
		s.mu.RUnlock()
		return
	}
	runID := s.runID
	s.mu.RUnlock()

	if _, err := s.channel.Invoke(ctx, MethodShutdown, &runID); err != nil {
		s.logger.Warn("collector shutdown failed",
			zap.Int64("run_id", runID),
			zap.Error(err),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
	s.runID = 0
	s.reportPeriod = 0
	s.config = Configuration{}
	s.metrics.SetConnected(false)
	s.logger.Info("disconnected from collector", zap.Int64("run_id", runID))
}
