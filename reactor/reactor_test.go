package reactor_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/fake"
	"github.com/momentics/hioload-reactor/internal/logging"
	"github.com/momentics/hioload-reactor/reactor"
)

func newFakeReactor(t *testing.T, opts ...reactor.Option) (*reactor.Reactor, *fake.Selector) {
	t.Helper()
	sel := fake.NewSelector()
	r, err := reactor.New(append([]reactor.Option{
		reactor.WithSelector(sel),
		reactor.WithPollTimeout(50 * time.Millisecond),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, sel
}

func TestReactorWakesEveryWatcher(t *testing.T) {
	r, sel := newFakeReactor(t)
	const n = 16
	wakers := make([]*fake.Waker, n)
	for i := range wakers {
		id := r.NextEventID()
		wakers[i] = fake.NewWaker()
		r.Watch(id, wakers[i])
		require.NoError(t, r.ReadInterest(100+i, id))
	}
	require.NoError(t, r.Run(nil))

	for i := 0; i < n; i++ {
		require.True(t, sel.Trigger(100+i, api.Readable))
	}
	for i, w := range wakers {
		select {
		case <-w.C():
		case <-time.After(5 * time.Second):
			t.Fatalf("waker %d never fired", i)
		}
	}
	for _, w := range wakers {
		assert.EqualValues(t, 1, w.Count())
	}
}

func TestReactorWakesWholeBatch(t *testing.T) {
	r, sel := newFakeReactor(t)
	a, b := fake.NewWaker(), fake.NewWaker()
	idA, idB := r.NextEventID(), r.NextEventID()
	r.Watch(idA, a)
	r.Watch(idB, b)
	require.NoError(t, r.ReadInterest(3, idA))
	require.NoError(t, r.WriteInterest(4, idB))

	// Both ready before the first wait, so they arrive in one batch.
	require.True(t, sel.Trigger(3, api.Readable))
	require.True(t, sel.Trigger(4, api.Writable))
	require.NoError(t, r.Run(nil))

	require.Eventually(t, func() bool {
		return a.Count() == 1 && b.Count() == 1
	}, 5*time.Second, time.Millisecond)
	s := r.Stats()
	assert.EqualValues(t, 2, s.Events)
	assert.EqualValues(t, 2, s.Wakes)
	assert.Zero(t, s.Unrouted)

	// One-shot: nothing more fires until re-armed.
	assert.False(t, sel.Trigger(3, api.Readable))
	require.NoError(t, r.ReadInterest(3, idA))
	assert.True(t, sel.Trigger(3, api.Readable))
}

func TestReactorSinkAfterWake(t *testing.T) {
	r, sel := newFakeReactor(t)
	w := fake.NewWaker()
	id := r.NextEventID()
	r.Watch(id, w)
	require.NoError(t, r.ReadInterest(7, id))

	sink := make(chan api.EventID, 1)
	require.NoError(t, r.Run(sink))
	sel.Trigger(7, api.Readable)

	select {
	case got := <-sink:
		assert.Equal(t, id, got)
		assert.EqualValues(t, 1, w.Count(), "waker fires before the id is published")
	case <-time.After(5 * time.Second):
		t.Fatal("no event on sink")
	}
}

func TestReactorFullSinkDoesNotStall(t *testing.T) {
	mr := control.NewMetricsRegistry()
	r, sel := newFakeReactor(t, reactor.WithMetrics(mr))
	wakers := make([]*fake.Waker, 3)
	for i := range wakers {
		id := r.NextEventID()
		wakers[i] = fake.NewWaker()
		r.Watch(id, wakers[i])
		require.NoError(t, r.ReadInterest(20+i, id))
	}

	sink := make(chan api.EventID, 1)
	require.NoError(t, r.Run(sink))
	for i, w := range wakers {
		require.True(t, sel.Trigger(20+i, api.Readable))
		select {
		case <-w.C():
		case <-time.After(5 * time.Second):
			t.Fatalf("waker %d never fired with an undrained sink", i)
		}
	}
	require.Eventually(t, func() bool { return r.Stats().Dropped == 2 }, 5*time.Second, time.Millisecond)
	assert.Len(t, sink, 1)
	require.Eventually(t, func() bool {
		v, ok := mr.Get("reactor.dropped")
		return ok && v == uint64(2)
	}, 5*time.Second, time.Millisecond)
}

func TestReactorUnroutedEvents(t *testing.T) {
	r, sel := newFakeReactor(t)
	id := r.NextEventID()
	require.NoError(t, r.ReadInterest(8, id))
	require.NoError(t, r.Run(nil))
	sel.Trigger(8, api.Readable)
	require.Eventually(t, func() bool { return r.Stats().Unrouted == 1 }, 5*time.Second, time.Millisecond)
}

func TestReactorStop(t *testing.T) {
	r, sel := newFakeReactor(t)
	assert.Equal(t, reactor.StateUninitialized, r.State())
	assert.NoError(t, r.Err())

	w := fake.NewWaker()
	r.Watch(r.NextEventID(), w)
	require.NoError(t, r.Run(nil))
	assert.ErrorIs(t, r.Run(nil), api.ErrAlreadyRunning)

	r.Stop()
	r.Stop()
	<-r.Done()
	assert.Equal(t, reactor.StateStopped, r.State())
	assert.ErrorIs(t, r.Err(), api.ErrReactorStopped)
	assert.EqualValues(t, 1, w.Count(), "watchers woken on stop")
	assert.GreaterOrEqual(t, sel.Wakeups(), 1)

	assert.ErrorIs(t, r.ReadInterest(1, r.NextEventID()), api.ErrReactorStopped)
	assert.ErrorIs(t, r.Run(nil), api.ErrReactorStopped)
}

func TestReactorStopBeforeRun(t *testing.T) {
	r, _ := newFakeReactor(t)
	r.Stop()
	select {
	case <-r.Done():
	default:
		t.Fatal("done not closed")
	}
	assert.Equal(t, reactor.StateStopped, r.State())
	assert.ErrorIs(t, r.Run(nil), api.ErrReactorStopped)
}

func TestReactorFailsOnPollError(t *testing.T) {
	var buf bytes.Buffer
	mr := control.NewMetricsRegistry()
	r, sel := newFakeReactor(t,
		reactor.WithLogger(logging.New(&buf, logiface.LevelDebug)),
		reactor.WithMetrics(mr),
	)
	w := fake.NewWaker()
	r.Watch(r.NextEventID(), w)
	require.NoError(t, r.Run(nil))

	boom := errors.New("epoll exploded")
	sel.SetWaitError(boom)
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("reactor did not stop")
	}
	assert.Equal(t, reactor.StateFailed, r.State())
	assert.ErrorIs(t, r.Err(), api.ErrReactorStopped)
	assert.ErrorIs(t, r.Err(), boom)
	assert.EqualValues(t, 1, w.Count())

	state, ok := mr.Get("reactor.state")
	require.True(t, ok)
	assert.Equal(t, "failed", state)
	assert.Contains(t, buf.String(), "reactor poll failed")
}

func TestReactorRejectsReservedIDs(t *testing.T) {
	r, _ := newFakeReactor(t)
	for _, id := range []api.EventID{0, api.ReservedEventIDs | 1} {
		err := r.ReadInterest(3, id)
		assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err), "id %d", id)
	}
	seen := map[api.EventID]bool{}
	for i := 0; i < 100; i++ {
		id := r.NextEventID()
		assert.False(t, id.Reserved())
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestReactorCloseDropsRegistration(t *testing.T) {
	r, sel := newFakeReactor(t)
	require.NoError(t, r.ReadInterest(12, r.NextEventID()))
	require.NoError(t, r.Close(12))
	require.NoError(t, r.Close(12))
	assert.Zero(t, sel.Len())
	assert.Zero(t, r.Registry().Len())
}

func TestReactorSpuriousCounter(t *testing.T) {
	r, _ := newFakeReactor(t)
	r.ReportSpurious(1)
	r.ReportSpurious(1)
	assert.EqualValues(t, 2, r.Stats().Spurious)
}
