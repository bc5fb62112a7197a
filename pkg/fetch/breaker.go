package fetch

import (
	"errors"
	"sort"
	"sync"

	"github.com/sony/gobreaker"
)

// breakerSet manages one circuit breaker per upstream host. Cells are
// created lazily on first use and never evicted; the host set is small and
// bounded by the provider registry.
type breakerSet struct {
	mu       sync.RWMutex
	policy   BreakerPolicy
	onChange func(host, from, to string)
	cells    map[string]*gobreaker.CircuitBreaker
}

func newBreakerSet(policy BreakerPolicy, onChange func(host, from, to string)) *breakerSet {
	return &breakerSet{
		policy:   policy,
		onChange: onChange,
		cells:    make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (s *breakerSet) get(host string) *gobreaker.CircuitBreaker {
	s.mu.RLock()
	cb, ok := s.cells[host]
	s.mu.RUnlock()
	if ok {
		return cb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.cells[host]; ok {
		return cb
	}

	threshold := s.policy.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}

	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     s.policy.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if s.onChange != nil {
				s.onChange(name, from.String(), to.String())
			}
		},
	})
	s.cells[host] = cb
	return cb
}

func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// BreakerStatus is a point-in-time view of one host's breaker cell.
type BreakerStatus struct {
	Host                string `json:"host"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// BreakerSnapshot reports the state of every breaker cell, sorted by host.
func (c *Client) BreakerSnapshot() []BreakerStatus {
	c.breakers.mu.RLock()
	defer c.breakers.mu.RUnlock()

	out := make([]BreakerStatus, 0, len(c.breakers.cells))
	for host, cb := range c.breakers.cells {
		counts := cb.Counts()
		out = append(out, BreakerStatus{
			Host:                host,
			State:               cb.State().String(),
			Requests:            counts.Requests,
			TotalFailures:       counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}
