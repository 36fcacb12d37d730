package forestlog

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Phase is the state of a Submitter.
type Phase int

const (
	// PhaseIdle means no submission is in flight or being reported.
	PhaseIdle Phase = iota
	// PhasePending means a Create call is in flight.
	PhasePending
	// PhaseSuccess reports a completed Create until the success delay passes.
	PhaseSuccess
	// PhaseError reports a failed Create until the error delay passes.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// User-facing status messages.
const (
	PendingMessage  = "Protecting forest data before storage..."
	SuccessMessage  = "Forest data protected and stored securely!"
	DeclinedMessage = "Transaction rejected by user"
	NoSignerMessage = "Please connect wallet first"
)

// Default auto-reset delays.
const (
	DefaultSuccessDelay = 2 * time.Second
	DefaultErrorDelay   = 3 * time.Second
)

// Status is a snapshot of a Submitter.
type Status struct {
	Phase   Phase
	Message string
}

// Creator is the write side of RecordStore.
type Creator interface {
	Create(ctx context.Context, d Draft) (Record, error)
}

// SubmitterConfig controls a Submitter. Zero delays take the defaults.
type SubmitterConfig struct {
	Clock        Clock
	SuccessDelay time.Duration
	ErrorDelay   time.Duration
	OnChange     func(Status)                  // called after every transition, outside the lock
	OnSuccess    func(context.Context, Record) // called after a successful Create
	Logger       Logger
}

// Submitter drives Create through Idle -> Pending -> Success|Error -> Idle.
//
// Only one submission may be pending at a time. Success and Error reset to
// Idle after their delay; a new submission cancels a scheduled reset, and a
// reset that fires late is ignored if a newer submission has started.
type Submitter struct {
	creator Creator
	clock   Clock
	cfg     SubmitterConfig
	log     Logger

	mu     sync.Mutex
	status Status
	draft  Draft
	timer  Timer
	gen    uint64
}

// NewSubmitter creates an idle Submitter around c.
func NewSubmitter(c Creator, cfg SubmitterConfig) *Submitter {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.SuccessDelay <= 0 {
		cfg.SuccessDelay = DefaultSuccessDelay
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = DefaultErrorDelay
	}
	return &Submitter{
		creator: c,
		clock:   cfg.Clock,
		cfg:     cfg,
		log:     orDiscard(cfg.Logger),
		status:  Status{Phase: PhaseIdle},
		draft:   NewDraft(cfg.Clock.Now()),
	}
}

// Status returns the current state.
func (s *Submitter) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Draft returns the held form input.
func (s *Submitter) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the held form input.
func (s *Submitter) SetDraft(d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = d
}

// SubmitDraft submits the held draft.
func (s *Submitter) SubmitDraft(ctx context.Context) (Record, error) {
	return s.Submit(ctx, s.Draft())
}

// Submit runs Create for d. It returns ErrSubmissionPending without
// side effects if another submission is in flight.
func (s *Submitter) Submit(ctx context.Context, d Draft) (Record, error) {
	s.mu.Lock()
	if s.status.Phase == PhasePending {
		s.mu.Unlock()
		return Record{}, ErrSubmissionPending
	}
	s.stopTimerLocked()
	s.gen++
	gen := s.gen
	pending := Status{Phase: PhasePending, Message: PendingMessage}
	s.status = pending
	s.mu.Unlock()
	s.notify(pending)

	rec, err := s.creator.Create(ctx, d)

	var st Status
	s.mu.Lock()
	if err != nil {
		st = Status{Phase: PhaseError, Message: ErrorMessage(err)}
		s.status = st
		s.scheduleResetLocked(gen, s.cfg.ErrorDelay, false)
	} else {
		st = Status{Phase: PhaseSuccess, Message: SuccessMessage}
		s.status = st
		s.scheduleResetLocked(gen, s.cfg.SuccessDelay, true)
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("submission failed", "err", err)
	}
	s.notify(st)
	if err == nil && s.cfg.OnSuccess != nil {
		s.cfg.OnSuccess(ctx, rec)
	}
	return rec, err
}

func (s *Submitter) scheduleResetLocked(gen uint64, delay time.Duration, clearDraft bool) {
	s.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.gen != gen || s.status.Phase == PhasePending {
			s.mu.Unlock()
			return
		}
		s.status = Status{Phase: PhaseIdle}
		if clearDraft {
			s.draft = NewDraft(s.clock.Now())
		}
		s.timer = nil
		st := s.status
		s.mu.Unlock()
		s.notify(st)
	})
}

func (s *Submitter) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Close cancels any scheduled reset.
func (s *Submitter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.stopTimerLocked()
}

func (s *Submitter) notify(st Status) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(st)
	}
}

// ErrorMessage renders a Create failure for the user.
func ErrorMessage(err error) string {
	switch {
	case IsUserDeclined(err):
		return DeclinedMessage
	case errors.Is(err, ErrNoSigner):
		return NoSignerMessage
	}
	detail := "Unknown error"
	if err != nil && err.Error() != "" {
		detail = err.Error()
	}
	return "Submission failed: " + detail
}
