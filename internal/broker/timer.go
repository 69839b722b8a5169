package broker

import "time"

type timerKind int

const (
	timerSessionEnd timerKind = iota
	timerDecisionEnd
)

// timerFire is a delayed event delivered back into the dispatcher loop. It
// carries the generation captured when it was scheduled; the dispatcher
// drops fires whose generation no longer matches the session's current
// one, which is what keeps a stale timer from resurrecting a torn-down
// session.
type timerFire struct {
	kind timerKind
	id   string
	gen  uint64
}

type scheduler struct {
	fires chan timerFire
}

func newScheduler() *scheduler {
	return &scheduler{
		fires: make(chan timerFire, 64),
	}
}

func (s *scheduler) schedule(d time.Duration, kind timerKind, id string, gen uint64) {
	time.AfterFunc(d, func() {
		s.fires <- timerFire{kind: kind, id: id, gen: gen}
	})
}

func (s *scheduler) C() <-chan timerFire {
	return s.fires
}
