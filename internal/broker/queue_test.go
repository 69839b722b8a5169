package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchQueue(t *testing.T) {
	ticket := func(id string) *queueTicket {
		return &queueTicket{connId: id, sessionLength: time.Minute, enqueuedAt: time.Now()}
	}

	t.Run("popPair needs at least two tickets", func(t *testing.T) {
		q := newMatchQueue()

		_, _, ok := q.popPair()
		assert.False(t, ok)

		q.push(ticket("t1"))
		_, _, ok = q.popPair()
		assert.False(t, ok)
		assert.Equal(t, 1, q.len(), "a lone ticket stays queued")
	})

	t.Run("popPair returns the two oldest in order", func(t *testing.T) {
		q := newMatchQueue()
		for _, id := range []string{"t1", "t2", "t3"} {
			q.push(ticket(id))
		}

		first, second, ok := q.popPair()
		require.True(t, ok)
		assert.Equal(t, "t1", first.connId)
		assert.Equal(t, "t2", second.connId)
		assert.Equal(t, 1, q.len())
	})

	t.Run("remove drops only the named ticket", func(t *testing.T) {
		q := newMatchQueue()
		for _, id := range []string{"t1", "t2", "t3"} {
			q.push(ticket(id))
		}

		assert.True(t, q.remove("t2"))
		assert.False(t, q.remove("t2"), "second removal finds nothing")
		assert.Equal(t, 2, q.len())

		first, second, ok := q.popPair()
		require.True(t, ok)
		assert.Equal(t, "t1", first.connId)
		assert.Equal(t, "t3", second.connId, "removal must not disturb FIFO order")
	})

	t.Run("remove on an empty queue", func(t *testing.T) {
		q := newMatchQueue()
		assert.False(t, q.remove("t1"))
	})
}
