package harvest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/collector"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/shared/agenterr"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/trace"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MethodTransactionSampleData is the collector method receiving trace samples
const MethodTransactionSampleData = "transaction_sample_data"

// Harvest outcomes used as metric labels
const (
	OutcomeSent      = "sent"
	OutcomeEmpty     = "empty"
	OutcomeRequeued  = "requeued"
	OutcomeDiscarded = "discarded"
)

// Drop reasons used as metric labels
const (
	DropBufferFull = "buffer_full"
	DropNotEnded   = "not_ended"
	DropRejected   = "rejected"
)

const (
	defaultMaxSamples   = 100
	defaultBackoffMin   = time.Second
	defaultBackoffMax   = 5 * time.Minute
	defaultReportPeriod = time.Minute
	finalHarvestTimeout = 5 * time.Second
)

// Session is the part of collector.Session the harvester drives
type Session interface {
	Connect(ctx context.Context) error
	Invoke(ctx context.Context, method string, args ...any) (collector.Result, error)
	Shutdown(ctx context.Context)
	ReportPeriod() time.Duration
}

var _ Session = (*collector.Session)(nil)

// Harvester buffers ended transactions and reports them once per report
// period. It implements trace.Recorder.
type Harvester struct {
	session    Session
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	maxSamples int
	backoffMin time.Duration
	backoffMax time.Duration

	mu      sync.Mutex
	samples []trace.Sample

	fullWarning rate.Sometimes
}

// Option configures a Harvester
type Option func(*Harvester)

// WithLogger sets the harvester logger
func WithLogger(logger *zap.Logger) Option {
	return func(h *Harvester) {
		h.logger = logger
	}
}

// WithMetrics records harvest outcomes in metrics
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(h *Harvester) {
		h.metrics = metrics
	}
}

// WithMaxSamples bounds the sample buffer
func WithMaxSamples(n int) Option {
	return func(h *Harvester) {
		if n > 0 {
			h.maxSamples = n
		}
	}
}

// WithBackoff sets the bounds of the exponential connect backoff
func WithBackoff(minWait, maxWait time.Duration) Option {
	return func(h *Harvester) {
		if minWait > 0 && maxWait >= minWait {
			h.backoffMin = minWait
			h.backoffMax = maxWait
		}
	}
}

// New creates a harvester reporting through session
func New(session Session, opts ...Option) *Harvester {
	h := &Harvester{
		session:     session,
		logger:      zap.NewNop(),
		maxSamples:  defaultMaxSamples,
		backoffMin:  defaultBackoffMin,
		backoffMax:  defaultBackoffMax,
		fullWarning: rate.Sometimes{First: 1, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Record buffers an ended transaction for the next harvest
func (h *Harvester) Record(txn *trace.Transaction) {
	sample, err := txn.Sample()
	if err != nil {
		h.metrics.IncTransactionsDropped(DropNotEnded)
		h.logger.Debug("ignoring unfinished transaction",
			zap.String("transaction_id", txn.ID()),
			zap.Error(err),
		)
		return
	}

	h.mu.Lock()
	full := len(h.samples) >= h.maxSamples
	if !full {
		h.samples = append(h.samples, sample)
	}
	h.mu.Unlock()

	if full {
		h.metrics.IncTransactionsDropped(DropBufferFull)
		h.fullWarning.Do(func() {
			h.logger.Warn("sample buffer full, dropping transactions",
				zap.Int("max_samples", h.maxSamples),
			)
		})
		return
	}
	h.metrics.IncTransactionsRecorded()
}

// Pending returns the number of buffered samples
func (h *Harvester) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}

func (h *Harvester) drain() []trace.Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	samples := h.samples
	h.samples = nil
	return samples
}

// requeue puts unsent samples back in front of newer ones, within capacity
func (h *Harvester) requeue(samples []trace.Sample) {
	h.mu.Lock()
	merged := append(samples, h.samples...)
	dropped := 0
	if len(merged) > h.maxSamples {
		dropped = len(merged) - h.maxSamples
		merged = merged[:h.maxSamples]
	}
	h.samples = merged
	h.mu.Unlock()

	for i := 0; i < dropped; i++ {
		h.metrics.IncTransactionsDropped(DropBufferFull)
	}
}

// Harvest sends every buffered sample in one call. Samples survive network
// and transport failures; samples the collector rejected are discarded.
func (h *Harvester) Harvest(ctx context.Context) error {
	samples := h.drain()
	if len(samples) == 0 {
		h.metrics.RecordHarvest(OutcomeEmpty, 0)
		return nil
	}

	payload := make([]any, 0, len(samples))
	for _, s := range samples {
		payload = append(payload, s.Payload())
	}

	_, err := h.session.Invoke(ctx, MethodTransactionSampleData, payload)
	if err == nil {
		h.metrics.RecordHarvest(OutcomeSent, len(samples))
		h.logger.Debug("harvest sent", zap.Int("samples", len(samples)))
		return nil
	}

	var protocol *agenterr.ProtocolError
	if _, remote := agenterr.AsRemote(err); remote || errors.As(err, &protocol) {
		h.metrics.RecordHarvest(OutcomeDiscarded, len(samples))
		for range samples {
			h.metrics.IncTransactionsDropped(DropRejected)
		}
		h.logger.Warn("collector rejected harvest",
			zap.Int("samples", len(samples)),
			zap.Error(err),
		)
		return err
	}

	h.requeue(samples)
	h.metrics.RecordHarvest(OutcomeRequeued, len(samples))
	h.logger.Warn("harvest failed, keeping samples",
		zap.Int("samples", len(samples)),
		zap.Error(err),
	)
	return err
}

// Run connects the session and harvests once per report period until ctx
// is done. A ForceRestart from the collector reconnects; a ForceDisconnect
// stops reporting and is returned. On cancellation Run sends a final harvest
// and shuts the session down.
func (h *Harvester) Run(ctx context.Context) error {
	for {
		if err := h.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err := h.loop(ctx)
		remote, isRemote := agenterr.AsRemote(err)
		switch {
		case isRemote && remote.IsForceRestart():
			h.logger.Info("collector requested restart", zap.String("message", remote.Message))
			h.session.Shutdown(ctx)
		case isRemote && remote.IsForceDisconnect():
			h.logger.Warn("collector requested disconnect", zap.String("message", remote.Message))
			h.session.Shutdown(ctx)
			return err
		default:
			h.stop()
			return nil
		}
	}
}

func (h *Harvester) connect(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := h.session.Connect(ctx)
		if err == nil || errors.Is(err, agenterr.ErrAlreadyConnected) {
			return nil
		}
		if remote, ok := agenterr.AsRemote(err); ok && remote.IsForceDisconnect() {
			return err
		}

		wait := retryablehttp.DefaultBackoff(h.backoffMin, h.backoffMax, attempt, nil)
		h.logger.Warn("collector connect failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (h *Harvester) loop(ctx context.Context) error {
	period := h.session.ReportPeriod()
	if period <= 0 {
		period = defaultReportPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := h.Harvest(ctx)
			if remote, ok := agenterr.AsRemote(err); ok && (remote.IsForceRestart() || remote.IsForceDisconnect()) {
				return err
			}
		}
	}
}

// stop flushes the buffer and ends the run after ctx was cancelled
func (h *Harvester) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), finalHarvestTimeout)
	defer cancel()

	if err := h.Harvest(ctx); err != nil {
		h.logger.Warn("final harvest failed", zap.Error(err))
	}
	h.session.Shutdown(ctx)
}
