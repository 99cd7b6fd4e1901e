package harvest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/collector"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/shared/agenterr"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/trace"
	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession scripts Connect and Invoke results in order
type fakeSession struct {
	mu          sync.Mutex
	connectErrs []error
	invokeErrs  []error
	connects    int
	shutdowns   int
	invocations [][]any
	methods     []string
	period      time.Duration
}

func (f *fakeSession) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeSession) Invoke(_ context.Context, method string, args ...any) (collector.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods = append(f.methods, method)
	f.invocations = append(f.invocations, args)
	if len(f.invokeErrs) > 0 {
		err := f.invokeErrs[0]
		f.invokeErrs = f.invokeErrs[1:]
		return collector.Result{}, err
	}
	return collector.NewResult([]byte("null")), nil
}

func (f *fakeSession) Shutdown(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
}

func (f *fakeSession) ReportPeriod() time.Duration {
	return f.period
}

func (f *fakeSession) counts() (connects, shutdowns, invocations int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.shutdowns, len(f.invocations)
}

func endedTransaction(t *testing.T, name string) *trace.Transaction {
	t.Helper()
	txn := trace.NewTransaction(name)
	require.NoError(t, txn.Start())
	node, err := trace.Enter(txn, "db.query")
	require.NoError(t, err)
	require.NoError(t, trace.Exit(node))
	require.NoError(t, txn.End())
	return txn
}

func TestRecordBuffersSamples(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	h := New(&fakeSession{}, WithMaxSamples(2), WithMetrics(metrics))

	h.Record(endedTransaction(t, "a"))
	h.Record(endedTransaction(t, "b"))
	h.Record(endedTransaction(t, "c"))
	assert.Equal(t, 2, h.Pending())

	unfinished := trace.NewTransaction("open")
	require.NoError(t, unfinished.Start())
	h.Record(unfinished)
	assert.Equal(t, 2, h.Pending())

	snapshot := metrics.Snapshot()
	assert.Equal(t, int64(2), snapshot.TransactionsRecorded)
	assert.Equal(t, int64(2), snapshot.TransactionsDropped)
}

func TestHarvestSendsSamples(t *testing.T) {
	session := &fakeSession{}
	h := New(session)
	h.Record(endedTransaction(t, "WebTransaction/GET /users"))
	h.Record(endedTransaction(t, "OtherTransaction/job"))

	require.NoError(t, h.Harvest(context.Background()))
	assert.Zero(t, h.Pending())

	require.Len(t, session.invocations, 1)
	assert.Equal(t, MethodTransactionSampleData, session.methods[0])
	args := session.invocations[0]
	require.Len(t, args, 1)

	samples, ok := args[0].([]any)
	require.True(t, ok)
	require.Len(t, samples, 2)
	first := samples[0].([]any)
	assert.Equal(t, "WebTransaction/GET /users", first[2])
	segment := first[5].([]any)
	assert.Len(t, segment[4], 1)
}

func TestHarvestEmptyBufferSkipsCall(t *testing.T) {
	session := &fakeSession{}
	h := New(session)

	require.NoError(t, h.Harvest(context.Background()))
	assert.Empty(t, session.invocations)
}

func TestHarvestFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantPending int
	}{
		{"network error keeps samples", errors.New("connection refused"), 2},
		{"transport error keeps samples", &agenterr.TransportError{Method: MethodTransactionSampleData, Status: 503}, 2},
		{"not connected keeps samples", agenterr.Usage(MethodTransactionSampleData, agenterr.ErrNotConnected), 2},
		{"remote error discards samples", agenterr.NewRemote(MethodTransactionSampleData, "RuntimeError", "bad"), 0},
		{"protocol error discards samples", &agenterr.ProtocolError{Method: MethodTransactionSampleData, Reason: "unexpected response format"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{invokeErrs: []error{tt.err}}
			h := New(session)
			h.Record(endedTransaction(t, "a"))
			h.Record(endedTransaction(t, "b"))

			err := h.Harvest(context.Background())
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantPending, h.Pending())
		})
	}
}

func TestRequeueRespectsCapacity(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	session := &fakeSession{invokeErrs: []error{errors.New("timeout")}}
	h := New(session, WithMaxSamples(3), WithMetrics(metrics))
	for i := 0; i < 3; i++ {
		h.Record(endedTransaction(t, "old-"+strconv.Itoa(i)))
	}
	samples := h.drain()
	h.Record(endedTransaction(t, "new"))
	h.requeue(samples)

	assert.Equal(t, 3, h.Pending())
	kept := h.drain()
	assert.Equal(t, "old-0", kept[0].Name)
	assert.Equal(t, "old-2", kept[2].Name)
	assert.Equal(t, int64(1), metrics.Snapshot().TransactionsDropped)
}

func TestRunRetriesConnect(t *testing.T) {
	session := &fakeSession{
		connectErrs: []error{errors.New("refused"), errors.New("refused")},
		period:      5 * time.Millisecond,
	}
	h := New(session, WithBackoff(time.Millisecond, 2*time.Millisecond))
	h.Record(endedTransaction(t, "a"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, _, invocations := session.counts()
		return invocations >= 1
	}, 2*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	connects, shutdowns, _ := session.counts()
	assert.Equal(t, 3, connects)
	assert.Equal(t, 1, shutdowns)
}

func TestRunStopsWhileConnecting(t *testing.T) {
	session := &fakeSession{connectErrs: []error{errors.New("refused")}}
	h := New(session, WithBackoff(time.Hour, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool {
		connects, _, _ := session.counts()
		return connects == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReconnectsOnForceRestart(t *testing.T) {
	session := &fakeSession{
		invokeErrs: []error{agenterr.NewRemote(MethodTransactionSampleData, "ForceRestartException", "restart")},
		period:     5 * time.Millisecond,
	}
	h := New(session)
	h.Record(endedTransaction(t, "a"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool {
		connects, _, _ := session.counts()
		return connects == 2
	}, 2*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	_, shutdowns, _ := session.counts()
	assert.Equal(t, 2, shutdowns)
}

func TestRunEndsOnForceDisconnect(t *testing.T) {
	session := &fakeSession{
		invokeErrs: []error{agenterr.NewRemote(MethodTransactionSampleData, "ForceDisconnectException", "license revoked")},
		period:     5 * time.Millisecond,
	}
	h := New(session)
	h.Record(endedTransaction(t, "a"))

	err := h.Run(context.Background())

	remote, ok := agenterr.AsRemote(err)
	require.True(t, ok)
	assert.True(t, remote.IsForceDisconnect())
	connects, shutdowns, _ := session.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, shutdowns)
}

func TestRunEndsOnForceDisconnectDuringConnect(t *testing.T) {
	session := &fakeSession{
		connectErrs: []error{agenterr.NewRemote(collector.MethodConnect, "ForceDisconnectException", "no")},
	}
	h := New(session)

	err := h.Run(context.Background())
	_, ok := agenterr.AsRemote(err)
	assert.True(t, ok)
}

// collectorServer answers the collector protocol over real HTTP
type collectorServer struct {
	mu      sync.Mutex
	samples [][]byte
	runIDs  []string
}

func (s *collectorServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	switch method {
	case collector.MethodRedirectHost, collector.MethodShutdown:
		io.WriteString(w, `{"return_value": null}`)
	case collector.MethodConnect:
		io.WriteString(w, `{"return_value": {"agent_run_id": 7, "data_report_period": 60}}`)
	case MethodTransactionSampleData:
		s.mu.Lock()
		s.samples = append(s.samples, body)
		s.runIDs = append(s.runIDs, r.URL.Query().Get("run_id"))
		s.mu.Unlock()
		io.WriteString(w, `{"return_value": null}`)
	default:
		http.NotFound(w, r)
	}
}

func TestHarvestAgainstCollector(t *testing.T) {
	fake := &collectorServer{}
	server := httptest.NewServer(fake)
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	channel := collector.NewChannel(collector.ChannelConfig{Host: u.Hostname(), Port: port, LicenseKey: "key"})
	session := collector.NewSession(channel, collector.DetectEnvironment([]string{"checkout"}))
	require.NoError(t, session.Connect(context.Background()))

	h := New(session)
	h.Record(endedTransaction(t, "WebTransaction/GET /cart"))
	require.NoError(t, h.Harvest(context.Background()))

	require.Len(t, fake.samples, 1)
	assert.Equal(t, "7", fake.runIDs[0])

	var args [][][]any
	require.NoError(t, sonic.Unmarshal(fake.samples[0], &args))
	require.Len(t, args, 1)
	require.Len(t, args[0], 1)
	assert.Equal(t, "WebTransaction/GET /cart", args[0][0][2])
}
