package zones

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DiscardSequence discards a batch of hand cards one step at a time. Between
// steps it suspends until the downstream consumer confirms (the presentation
// layer acknowledging the card left the zone), bounded by a per-step timeout:
// if no confirmation arrives the sequence forces the next step anyway, so a
// silent observer can never stall the authority. Once started, a sequence
// always runs to completion; there is no cancel path, because stopping midway
// would leave cards in a zone-membership-ambiguous state.
type DiscardSequence struct {
	discarder   Discarder
	instances   []uuid.UUID
	stepTimeout time.Duration
	confirms    chan struct{}
	done        chan struct{}
	logger      *zap.Logger
}

// Discarder performs one hand-to-discard move. Tracker satisfies it directly;
// callers that need each step serialized against a larger lock wrap it.
type Discarder interface {
	DiscardFromHand(instance uuid.UUID) bool
}

// NewDiscardSequence prepares a sequence over the given hand card instances.
func NewDiscardSequence(discarder Discarder, instances []uuid.UUID, stepTimeout time.Duration, logger *zap.Logger) *DiscardSequence {
	if stepTimeout <= 0 {
		stepTimeout = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscardSequence{
		discarder:   discarder,
		instances:   instances,
		stepTimeout: stepTimeout,
		confirms:    make(chan struct{}, len(instances)),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Confirm acknowledges that the current step's card finished leaving its
// zone downstream. Confirms beyond the pending step are buffered.
func (s *DiscardSequence) Confirm() {
	select {
	case s.confirms <- struct{}{}:
	default:
	}
}

// Done is closed when the sequence has completed every step.
func (s *DiscardSequence) Done() <-chan struct{} {
	return s.done
}

// Run executes the sequence. It is cooperative, not parallel: the caller
// decides which goroutine it occupies, and each step's wait is bounded.
// Returns the number of cards actually discarded.
func (s *DiscardSequence) Run() int {
	defer close(s.done)

	discarded := 0
	for i, instance := range s.instances {
		if s.discarder.DiscardFromHand(instance) {
			discarded++
		}

		// Last step needs no downstream confirmation.
		if i == len(s.instances)-1 {
			break
		}

		timer := time.NewTimer(s.stepTimeout)
		select {
		case <-s.confirms:
			timer.Stop()
		case <-timer.C:
			s.logger.Warn("discard step confirmation timed out, continuing",
				zap.String("instance", instance.String()),
				zap.Duration("timeout", s.stepTimeout),
			)
		}
	}
	return discarded
}
