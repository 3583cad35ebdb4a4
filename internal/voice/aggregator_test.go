package voice

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestAggregator(grace time.Duration) (*listAggregator, *manualClock) {
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	agg := newListAggregator(grace, clock.Now, slog.Default())
	return agg, clock
}

func TestAggregatorResolvesAfterGraceWindow(t *testing.T) {
	agg, clock := newTestAggregator(500 * time.Millisecond)
	reply := make(chan []string, 1)

	agg.trackAll(42, reply)
	agg.addItem(42, "x")
	agg.addItem(42, "y")
	require.True(t, agg.complete(42))

	agg.sweep()
	require.Empty(t, reply, "must not resolve before the grace window elapses")

	clock.Advance(499 * time.Millisecond)
	agg.sweep()
	require.Empty(t, reply)

	clock.Advance(time.Millisecond)
	agg.sweep()
	require.Len(t, reply, 1)
	assert.Equal(t, []string{"x", "y"}, <-reply)
	assert.Zero(t, agg.size())
}

func TestAggregatorEmptyListIsNotAnError(t *testing.T) {
	agg, clock := newTestAggregator(500 * time.Millisecond)
	reply := make(chan []string, 1)

	agg.trackAll(7, reply)
	require.True(t, agg.complete(7))
	clock.Advance(time.Second)
	agg.sweep()

	require.Len(t, reply, 1)
	assert.Empty(t, <-reply)
}

func TestAggregatorLateItemBumpsCompletion(t *testing.T) {
	agg, clock := newTestAggregator(500 * time.Millisecond)
	reply := make(chan []string, 1)

	agg.trackAll(42, reply)
	agg.addItem(42, "x")
	require.True(t, agg.complete(42))

	// A trailing item inside the grace window restarts it.
	clock.Advance(400 * time.Millisecond)
	agg.addItem(42, "y")
	clock.Advance(400 * time.Millisecond)
	agg.sweep()
	require.Empty(t, reply)

	clock.Advance(100 * time.Millisecond)
	agg.sweep()
	require.Len(t, reply, 1)
	assert.Equal(t, []string{"x", "y"}, <-reply)
}

func TestAggregatorInterleavedRequestsDoNotCrossContaminate(t *testing.T) {
	agg, clock := newTestAggregator(500 * time.Millisecond)
	replyX := make(chan []string, 1)
	replyY := make(chan []string, 1)

	agg.trackAll(1, replyX)
	agg.trackAll(2, replyY)

	agg.addItem(1, "a")
	agg.addItem(2, "p")
	agg.addItem(1, "b")
	agg.addItem(2, "q")

	require.True(t, agg.complete(1))
	require.True(t, agg.complete(2))
	clock.Advance(time.Second)
	agg.sweep()

	assert.Equal(t, []string{"a", "b"}, <-replyX)
	assert.Equal(t, []string{"p", "q"}, <-replyY)
}

func TestAggregatorSinglePendingHeuristic(t *testing.T) {
	t.Run("attributes unknown id to sole pending request", func(t *testing.T) {
		agg, clock := newTestAggregator(500 * time.Millisecond)
		reply := make(chan []string, 1)

		agg.trackAll(42, reply)
		agg.addItem(0, "stray")
		require.True(t, agg.complete(42))
		clock.Advance(time.Second)
		agg.sweep()

		assert.Equal(t, []string{"stray"}, <-reply)
	})

	t.Run("drops unknown id with zero pending requests", func(t *testing.T) {
		agg, _ := newTestAggregator(500 * time.Millisecond)
		agg.addItem(99, "stray")
		assert.Zero(t, agg.size())
	})

	t.Run("drops unknown id with two pending requests", func(t *testing.T) {
		agg, clock := newTestAggregator(500 * time.Millisecond)
		replyX := make(chan []string, 1)
		replyY := make(chan []string, 1)

		agg.trackAll(1, replyX)
		agg.trackAll(2, replyY)
		agg.addItem(99, "stray")

		require.True(t, agg.complete(1))
		require.True(t, agg.complete(2))
		clock.Advance(time.Second)
		agg.sweep()

		assert.Empty(t, <-replyX)
		assert.Empty(t, <-replyY)
	})
}

func TestAggregatorExistenceProbe(t *testing.T) {
	t.Run("finds present account", func(t *testing.T) {
		agg, clock := newTestAggregator(500 * time.Millisecond)
		reply := make(chan bool, 1)

		agg.trackExists(5, "alice", reply)
		agg.addItem(5, "bob")
		agg.addItem(5, "alice")
		require.True(t, agg.complete(5))
		clock.Advance(time.Second)
		agg.sweep()

		assert.True(t, <-reply)
	})

	t.Run("resolves false on terminal error without waiting", func(t *testing.T) {
		agg, _ := newTestAggregator(500 * time.Millisecond)
		reply := make(chan bool, 1)

		agg.trackExists(5, "alice", reply)
		agg.addItem(5, "alice")
		require.True(t, agg.fail(5))

		assert.False(t, <-reply)
		assert.Zero(t, agg.size())
	})
}

func TestAggregatorFailAll(t *testing.T) {
	agg, _ := newTestAggregator(500 * time.Millisecond)
	replyAll := make(chan []string, 1)
	replyExists := make(chan bool, 1)

	agg.trackAll(1, replyAll)
	agg.trackExists(2, "alice", replyExists)
	agg.addItem(1, "x")

	assert.Equal(t, 2, agg.failAll())
	assert.Empty(t, <-replyAll)
	assert.False(t, <-replyExists)
	assert.Zero(t, agg.size())
}
