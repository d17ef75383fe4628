package emit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDelay spaces successive artifacts of a multi-output run
const DefaultDelay = 180 * time.Millisecond

// Sequencer paces an Emitter so that successive artifacts are at least delay
// apart. The first artifact is not delayed. Use one Sequencer per run.
type Sequencer struct {
	next    Emitter
	limiter *rate.Limiter
}

// NewSequencer wraps next. A delay of zero or less disables pacing.
func NewSequencer(next Emitter, delay time.Duration) *Sequencer {
	s := &Sequencer{next: next}
	if delay > 0 {
		s.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return s
}

func (s *Sequencer) Emit(ctx context.Context, a Artifact) (Record, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Record{}, fmt.Errorf("emit %s: %w", a.Filename, err)
		}
	}
	return s.next.Emit(ctx, a)
}
