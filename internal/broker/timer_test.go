package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler(t *testing.T) {
	t.Run("delivers the fire with its captured generation", func(t *testing.T) {
		s := newScheduler()
		s.schedule(time.Millisecond, timerDecisionEnd, "s1", 3)

		select {
		case fire := <-s.C():
			assert.Equal(t, timerDecisionEnd, fire.kind)
			assert.Equal(t, "s1", fire.id)
			assert.Equal(t, uint64(3), fire.gen)
		case <-time.After(time.Second):
			t.Fatal("timer never fired")
		}
	})

	t.Run("fires are ordered by deadline", func(t *testing.T) {
		s := newScheduler()
		s.schedule(50*time.Millisecond, timerSessionEnd, "late", 1)
		s.schedule(time.Millisecond, timerSessionEnd, "early", 1)

		deadline := time.After(time.Second)
		var got []string
		for len(got) < 2 {
			select {
			case fire := <-s.C():
				got = append(got, fire.id)
			case <-deadline:
				t.Fatal("timers never fired")
			}
		}
		require.Equal(t, []string{"early", "late"}, got)
	})
}
