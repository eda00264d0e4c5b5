package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/change-adapter/internal/metrics"
	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/source"
	"github.com/nhle/change-adapter/internal/source/servicenow"
	"github.com/nhle/change-adapter/internal/store"
	storetest "github.com/nhle/change-adapter/tests/testutil"
)

const twoTickets = `{"result":[
	{"number":"CHG0001","active":"true","priority":"3","description":"patch db",
	 "work_start":"2024-01-01 10:00:00","work_end":"2024-01-01 12:00:00","sys_id":"a1"},
	{"number":"CHG0002","active":"false","priority":"1","description":"rotate certs",
	 "work_start":"","work_end":"","sys_id":"b2"}
]}`

type stubConnector struct {
	mu    gosync.Mutex
	body  *string
	err   error
	calls int
}

func (c *stubConnector) Get(context.Context) (*source.Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &source.Envelope{StatusCode: 200, Body: c.body}, nil
}

func (c *stubConnector) Post(context.Context) (*source.Envelope, error) {
	return nil, errors.New("not used")
}

func (c *stubConnector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func withBody(s string) *stubConnector {
	return &stubConnector{body: &s}
}

func newTestPoller(t *testing.T) (*Poller, *store.SQLiteStore, *metrics.Metrics) {
	t.Helper()
	s := storetest.NewTestStore(t)
	m := metrics.NewMetrics()
	return New(s, m, zerolog.Nop()), s, m
}

func newAdapter(id string, conn source.Connector) *servicenow.Adapter {
	return servicenow.NewAdapter(id, model.AdapterConfig{ID: id, Name: id},
		servicenow.WithConnector(conn))
}

func TestCheckNowOnline(t *testing.T) {
	p, s, m := newTestPoller(t)
	a := newAdapter("snow-a", withBody(twoTickets))
	p.Register(a, time.Minute)

	res := p.CheckNow(context.Background(), a)

	require.NoError(t, res.Err)
	assert.Equal(t, model.StatusOnline, res.Status)
	assert.Len(t, res.Records, 2)

	ctx := context.Background()
	n, err := s.CountTickets(ctx, "snow-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := s.GetStatusEvents(ctx, "snow-a", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.StatusOnline, events[0].Status)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsFetchedTotal.WithLabelValues("snow-a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InstanceUp.WithLabelValues("snow-a")))

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, model.StatusOnline, statuses[0].LastStatus)
	assert.Equal(t, CheckIdle, statuses[0].State)
	assert.Equal(t, 2, statuses[0].Records)
	assert.NoError(t, statuses[0].LastError)
	assert.False(t, statuses[0].LastCheck.IsZero())
}

func TestCheckNowOffline(t *testing.T) {
	p, s, m := newTestPoller(t)
	authErr := &source.AuthError{InstanceID: "snow-b", Message: "invalid credentials"}
	a := newAdapter("snow-b", &stubConnector{err: authErr})
	p.Register(a, time.Minute)

	res := p.CheckNow(context.Background(), a)

	assert.Equal(t, model.StatusOffline, res.Status)
	assert.True(t, source.IsAuthError(res.Err))
	assert.Empty(t, res.Records)

	events, err := s.GetStatusEvents(context.Background(), "snow-b", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.StatusOffline, events[0].Status)
	assert.Contains(t, events[0].Message, "invalid credentials")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrorsTotal.WithLabelValues("snow-b", "auth")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InstanceUp.WithLabelValues("snow-b")))

	st := p.GetStatuses()[0]
	assert.Equal(t, model.StatusOffline, st.LastStatus)
	assert.Error(t, st.LastError)
}

func TestCheckNowDroppedResponse(t *testing.T) {
	p, s, _ := newTestPoller(t)
	a := newAdapter("snow-c", &stubConnector{})
	p.Register(a, time.Minute)

	res := p.CheckNow(context.Background(), a)

	assert.True(t, res.Dropped)
	assert.Empty(t, res.Status)

	events, err := s.GetStatusEvents(context.Background(), "snow-c", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, p.GetStatuses()[0].LastStatus)
}

func TestListenerSeesEventsFromOutsideThePoller(t *testing.T) {
	p, _, m := newTestPoller(t)
	a := newAdapter("snow-d", withBody(`{"result":[]}`))
	p.Register(a, time.Minute)

	_, ok := <-a.Healthcheck(context.Background())
	require.True(t, ok)

	assert.Equal(t, model.StatusOnline, p.GetStatuses()[0].LastStatus)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.HealthchecksTotal.WithLabelValues("snow-d", "ONLINE")))
}

func TestStartRunsInitialCheckAndRefresh(t *testing.T) {
	p, _, _ := newTestPoller(t)
	conn := withBody(twoTickets)
	a := newAdapter("snow-e", conn)
	p.Register(a, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	defer p.Stop()

	first := waitResult(t, p)
	assert.Equal(t, "snow-e", first.InstanceID)
	assert.Equal(t, model.StatusOnline, first.Status)

	assert.True(t, p.RefreshInstance("snow-e"))
	assert.False(t, p.RefreshInstance("missing"))

	second := waitResult(t, p)
	assert.Equal(t, "snow-e", second.InstanceID)
	assert.Equal(t, 2, conn.Calls())
}

func TestRegisterWhileRunningStartsPolling(t *testing.T) {
	p, _, _ := newTestPoller(t)
	p.Start(context.Background())
	defer p.Stop()

	conn := withBody(twoTickets)
	p.Register(newAdapter("snow-late", conn), time.Hour)

	res := waitResult(t, p)
	assert.Equal(t, "snow-late", res.InstanceID)
	assert.Equal(t, model.StatusOnline, res.Status)
	assert.True(t, p.RefreshInstance("snow-late"))
	assert.Equal(t, "snow-late", waitResult(t, p).InstanceID)
	assert.Equal(t, 2, conn.Calls())
}

func TestRefreshAll(t *testing.T) {
	p, _, _ := newTestPoller(t)
	for i := range 3 {
		p.Register(newAdapter(fmt.Sprintf("snow-%d", i), withBody(`{"result":[]}`)), time.Hour)
	}

	p.Start(context.Background())
	defer p.Stop()

	seen := map[string]int{}
	for range 3 {
		seen[waitResult(t, p).InstanceID]++
	}
	p.RefreshAll()
	for range 3 {
		seen[waitResult(t, p).InstanceID]++
	}

	assert.Equal(t, map[string]int{"snow-0": 2, "snow-1": 2, "snow-2": 2}, seen)
}

func TestStopIsIdempotent(t *testing.T) {
	p, _, _ := newTestPoller(t)
	p.Register(newAdapter("snow-f", withBody(`{"result":[]}`)), time.Hour)

	p.Stop()
	p.Start(context.Background())
	waitResult(t, p)
	p.Stop()
	p.Stop()
}

func TestRegisterDefaultsInterval(t *testing.T) {
	p, _, _ := newTestPoller(t)
	p.Register(newAdapter("snow-g", withBody(`{"result":[]}`)), 0)

	require.Len(t, p.entries, 1)
	assert.Equal(t, defaultInterval, p.entries[0].interval)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", &source.AuthError{InstanceID: "x", Message: "denied"}, "auth"},
		{"malformed", &source.PayloadError{Op: "decode", Err: errors.New("eof")}, "malformed"},
		{"status", &source.StatusError{Method: "GET", Path: "/", StatusCode: 500}, "transport"},
		{"wrapped auth", fmt.Errorf("get: %w", &source.AuthError{InstanceID: "x"}), "auth"},
		{"other", errors.New("dial tcp: refused"), "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorKind(tt.err))
		})
	}
}

func waitResult(t *testing.T, p *Poller) CheckResult {
	t.Helper()
	select {
	case res := <-p.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for check result")
		return CheckResult{}
	}
}
