package resilient

import (
	"sync"
	"time"
)

// rateLimit enforces a minimum inter-call interval for one remote service.
// A call arriving before the interval has elapsed blocks rather than being
// rejected. State lives for the process lifetime.
type rateLimit struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCall    time.Time
}

// wait blocks until the minimum interval since the previous call has passed,
// then claims the current slot.
func (r *rateLimit) wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.minInterval <= 0 {
		r.lastCall = time.Now()
		return
	}
	if elapsed := time.Since(r.lastCall); elapsed < r.minInterval {
		time.Sleep(r.minInterval - elapsed)
	}
	r.lastCall = time.Now()
}

// limiterSet holds per-service rate limiters.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rateLimit
}

func newLimiterSet() *limiterSet {
	return &limiterSet{limiters: make(map[string]*rateLimit)}
}

func (s *limiterSet) get(service string) *rateLimit {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.limiters[service]
	if l == nil {
		l = &rateLimit{}
		s.limiters[service] = l
	}
	return l
}

func (s *limiterSet) setInterval(service string, d time.Duration) {
	l := s.get(service)
	l.mu.Lock()
	l.minInterval = d
	l.mu.Unlock()
}
