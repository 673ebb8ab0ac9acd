package autopilot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"ScribePilot/internal/app/actions"
	"ScribePilot/internal/config"
)

type blockingRunner struct {
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	return context.Cause(ctx)
}

type stuckRunner struct{}

func (stuckRunner) Run(context.Context) error {
	select {} // никогда не завершается
}

type stubQueue struct {
	enqueued []actions.Request
	busy     bool
}

func (q *stubQueue) Enqueue(req actions.Request) bool {
	q.enqueued = append(q.enqueued, req)
	return true
}
func (q *stubQueue) Busy() bool { return q.busy }

type stubCases struct {
	open      bool
	accession string
}

func (c *stubCases) IsCaseOpen() bool         { return c.open }
func (c *stubCases) CurrentAccession() string { return c.accession }

type stubNotes struct{ has bool }

func (n *stubNotes) HasNoteFor(string) bool { return n.has }

func TestStartStopLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &blockingRunner{started: make(chan struct{})}
	a := New(config.Defaults(), &stubQueue{}, &stubCases{}, &stubNotes{}, nil, zap.NewNop().Sugar(), r)

	require.NoError(t, a.Start(context.Background()))
	select {
	case <-r.started:
	case <-time.After(time.Second):
		t.Fatal("runner did not start")
	}

	require.Error(t, a.Start(context.Background()), "повторный старт запрещён")
	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()), "повторный Stop — no-op")
}

func TestStopJoinTimeout(t *testing.T) {
	cfg := config.Defaults()
	cfg.ActionJoinTimeout = 20 * time.Millisecond
	a := New(cfg, &stubQueue{}, &stubCases{}, &stubNotes{}, nil, zap.NewNop().Sugar(), stuckRunner{})

	require.NoError(t, a.Start(context.Background()))
	err := a.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "join timeout")
}

func TestFacadeDelegation(t *testing.T) {
	q := &stubQueue{busy: true}
	c := &stubCases{open: true, accession: "ACC-7"}
	n := &stubNotes{has: true}
	a := New(config.Defaults(), q, c, n, nil, zap.NewNop().Sugar())

	assert.True(t, a.Enqueue(actions.Request{Kind: actions.KindSign}))
	require.Len(t, q.enqueued, 1)
	assert.True(t, a.Busy())
	assert.True(t, a.IsCaseOpen())
	assert.Equal(t, "ACC-7", a.CurrentAccession())
	assert.True(t, a.HasCriticalNoteFor("ACC-7"))
}
