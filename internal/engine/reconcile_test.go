package engine_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaintodo/internal/engine"
	"chaintodo/internal/ledger"
	"chaintodo/internal/log"
	"chaintodo/internal/testutil"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Infof(format string, args ...any)    { l.add(format, args...) }
func (l *recordingLogger) Warningf(format string, args ...any) { l.add(format, args...) }
func (l *recordingLogger) Errorf(format string, args ...any)   { l.add(format, args...) }
func (l *recordingLogger) Debugf(format string, args ...any)   { l.add(format, args...) }
func (l *recordingLogger) WithValues(log.Kv) log.Logger        { return l }
func (l *recordingLogger) WithCtxValues(context.Context) log.Logger {
	return l
}
func (l *recordingLogger) SetValuesOnCtx(parent context.Context, values log.Kv) context.Context {
	return log.CtxWithValues(parent, values)
}

func (l *recordingLogger) count(substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func TestReconcilerCoalescesConcurrentRequests(t *testing.T) {
	l := testutil.NewFakeLedger()
	l.Seed(1, "a", false)
	conn := ledger.Connection{Address: testutil.DefaultAddress, Handle: l}
	logger := &recordingLogger{}
	mirror := &engine.Mirror{}
	r := engine.NewReconciler(mirror, nil, logger)

	l.HoldReads()
	results := make(chan error, 3)
	go func() { results <- r.Reconcile(context.Background(), conn) }()
	select {
	case <-l.ReadStarted:
	case <-time.After(waitTimeout):
		t.Fatal("first pass never started")
	}
	assert.True(t, r.Running())

	// Both requests arrive while the first pass runs and share one trailing pass.
	l.Seed(2, "b", false)
	go func() { results <- r.Reconcile(context.Background(), conn) }()
	go func() { results <- r.Reconcile(context.Background(), conn) }()
	require.Eventually(t, func() bool {
		return logger.count("coalescing") == 2
	}, waitTimeout, 5*time.Millisecond)

	l.ReleaseReads()
	for i := 0; i < 3; i++ {
		require.NoError(t, waitErr(t, results))
	}

	get, _, _ := l.Calls()
	assert.Equal(t, 2, get)
	assert.Equal(t, []ledger.TaskID{1, 2}, ids(mirror.Tasks()))
	require.Eventually(t, func() bool { return !r.Running() }, waitTimeout, 5*time.Millisecond)
}

func TestReconcilerTrailingPassOutlivesCaller(t *testing.T) {
	l := testutil.NewFakeLedger()
	conn := ledger.Connection{Handle: l}
	mirror := &engine.Mirror{}
	logger := &recordingLogger{}
	r := engine.NewReconciler(mirror, nil, logger)

	l.HoldReads()
	first := make(chan error, 1)
	go func() { first <- r.Reconcile(context.Background(), conn) }()
	<-l.ReadStarted

	ctx, cancel := context.WithCancel(context.Background())
	queued := make(chan error, 1)
	go func() { queued <- r.Reconcile(ctx, conn) }()
	require.Eventually(t, func() bool {
		return logger.count("coalescing") == 1
	}, waitTimeout, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, waitErr(t, queued), context.Canceled)

	l.Seed(1, "late", false)
	l.ReleaseReads()
	require.NoError(t, waitErr(t, first))

	require.Eventually(t, func() bool {
		return !r.Running() && len(mirror.Tasks()) == 1
	}, waitTimeout, 5*time.Millisecond)
}
