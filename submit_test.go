package forestlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type creatorFunc func(ctx context.Context, d Draft) (Record, error)

func (f creatorFunc) Create(ctx context.Context, d Draft) (Record, error) { return f(ctx, d) }

// statusLog records every status a Submitter reports.
type statusLog struct {
	mu  sync.Mutex
	all []Status
}

func (l *statusLog) add(st Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, st)
}

func (l *statusLog) phases() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Phase, len(l.all))
	for i, st := range l.all {
		out[i] = st.Phase
	}
	return out
}

func newTestSubmitter(c Creator, clock *fakeClock) (*Submitter, *statusLog) {
	log := &statusLog{}
	s := NewSubmitter(c, SubmitterConfig{Clock: clock, OnChange: log.add})
	return s, log
}

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSubmitter_InitialState(t *testing.T) {
	s, _ := newTestSubmitter(creatorFunc(nil), newFakeClock(epoch))

	assert.Equal(t, Status{Phase: PhaseIdle}, s.Status())
	assert.Equal(t, NewDraft(epoch), s.Draft())
	assert.Equal(t, 2024, s.Draft().Year)
	assert.Equal(t, "idle", PhaseIdle.String())
}

func TestSubmitter_SuccessResetsAfterDelay(t *testing.T) {
	clock := newFakeClock(epoch)
	var seen Status
	var s *Submitter
	s, log := newTestSubmitter(creatorFunc(func(ctx context.Context, d Draft) (Record, error) {
		seen = s.Status()
		return Record{ID: "r1", Location: d.Location}, nil
	}), clock)

	s.SetDraft(validDraft("Amazon"))
	rec, err := s.SubmitDraft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, Status{Phase: PhasePending, Message: PendingMessage}, seen)
	assert.Equal(t, Status{Phase: PhaseSuccess, Message: SuccessMessage}, s.Status())

	clock.Advance(DefaultSuccessDelay - time.Millisecond)
	assert.Equal(t, PhaseSuccess, s.Status().Phase)
	assert.Equal(t, "Amazon", s.Draft().Location, "draft kept until reset")

	clock.Advance(time.Millisecond)
	assert.Equal(t, Status{Phase: PhaseIdle}, s.Status())
	assert.Equal(t, NewDraft(clock.Now()), s.Draft(), "draft cleared on reset")
	assert.Equal(t, []Phase{PhasePending, PhaseSuccess, PhaseIdle}, log.phases())
}

func TestSubmitter_DeclinedShowsMessageThenIdle(t *testing.T) {
	clock := newFakeClock(epoch)
	s, log := newTestSubmitter(creatorFunc(func(context.Context, Draft) (Record, error) {
		return Record{}, errors.New("ethers: user rejected transaction (action=sendTransaction)")
	}), clock)

	d := validDraft("Congo")
	s.SetDraft(d)
	_, err := s.SubmitDraft(context.Background())
	require.Error(t, err)
	assert.Equal(t, Status{Phase: PhaseError, Message: DeclinedMessage}, s.Status())

	clock.Advance(DefaultErrorDelay - time.Millisecond)
	assert.Equal(t, PhaseError, s.Status().Phase)
	clock.Advance(time.Millisecond)
	assert.Equal(t, Status{Phase: PhaseIdle}, s.Status())
	assert.Equal(t, d, s.Draft(), "failed submission keeps the draft")
	assert.Equal(t, []Phase{PhasePending, PhaseError, PhaseIdle}, log.phases())
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrUserDeclined, "Transaction rejected by user"},
		{errors.New("wallet: user rejected transaction"), "Transaction rejected by user"},
		{ErrNoSigner, "Please connect wallet first"},
		{wrapWrite("write record", ErrNoSigner), "Please connect wallet first"},
		{errors.New("gas too low"), "Submission failed: gas too low"},
		{errors.New(""), "Submission failed: Unknown error"},
		{nil, "Submission failed: Unknown error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorMessage(tt.err))
	}
}

func TestSubmitter_DoubleSubmitRefused(t *testing.T) {
	clock := newFakeClock(epoch)
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	s, _ := newTestSubmitter(creatorFunc(func(context.Context, Draft) (Record, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		return Record{ID: "only"}, nil
	}), clock)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), validDraft("first"))
		done <- err
	}()
	<-entered

	_, err := s.Submit(context.Background(), validDraft("second"))
	assert.ErrorIs(t, err, ErrSubmissionPending)
	assert.Equal(t, PhasePending, s.Status().Phase)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseSuccess, s.Status().Phase)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestSubmitter_NewSubmissionCancelsReset(t *testing.T) {
	clock := newFakeClock(epoch)
	fail := true
	s, _ := newTestSubmitter(creatorFunc(func(context.Context, Draft) (Record, error) {
		if fail {
			return Record{}, errors.New("boom")
		}
		return Record{ID: "ok"}, nil
	}), clock)

	_, err := s.Submit(context.Background(), validDraft("a"))
	require.Error(t, err)
	assert.Equal(t, "Submission failed: boom", s.Status().Message)
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Second)
	fail = false
	_, err = s.Submit(context.Background(), validDraft("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, clock.Pending(), "error reset cancelled")

	clock.Advance(DefaultErrorDelay)
	assert.Equal(t, PhaseIdle, s.Status().Phase)
}

func TestSubmitter_StaleResetIgnored(t *testing.T) {
	clock := newFakeClock(epoch)
	clock.ignoreStop = true
	fail := true
	s, log := newTestSubmitter(creatorFunc(func(context.Context, Draft) (Record, error) {
		if fail {
			return Record{}, errors.New("boom")
		}
		return Record{ID: "ok"}, nil
	}), clock)

	_, err := s.Submit(context.Background(), validDraft("a"))
	require.Error(t, err)

	clock.Advance(2 * time.Second)
	fail = false
	_, err = s.Submit(context.Background(), validDraft("a"))
	require.NoError(t, err)

	// The error reset fires at +3s but belongs to the older submission.
	clock.Advance(time.Second)
	assert.Equal(t, PhaseSuccess, s.Status().Phase)

	clock.Advance(time.Second)
	assert.Equal(t, PhaseIdle, s.Status().Phase)
	assert.Equal(t, []Phase{PhasePending, PhaseError, PhasePending, PhaseSuccess, PhaseIdle}, log.phases())
}

func TestSubmitter_OnSuccessAndCustomDelays(t *testing.T) {
	clock := newFakeClock(epoch)
	var got Record
	s := NewSubmitter(creatorFunc(func(context.Context, Draft) (Record, error) {
		return Record{ID: "cb"}, nil
	}), SubmitterConfig{
		Clock:        clock,
		SuccessDelay: 10 * time.Second,
		OnSuccess:    func(_ context.Context, r Record) { got = r },
	})

	_, err := s.Submit(context.Background(), validDraft("x"))
	require.NoError(t, err)
	assert.Equal(t, "cb", got.ID)

	clock.Advance(DefaultSuccessDelay)
	assert.Equal(t, PhaseSuccess, s.Status().Phase)
	clock.Advance(10 * time.Second)
	assert.Equal(t, PhaseIdle, s.Status().Phase)
}

func TestSubmitter_CloseCancelsReset(t *testing.T) {
	clock := newFakeClock(epoch)
	s, _ := newTestSubmitter(creatorFunc(func(context.Context, Draft) (Record, error) {
		return Record{}, ErrNoSigner
	}), clock)

	_, err := s.Submit(context.Background(), validDraft("x"))
	require.ErrorIs(t, err, ErrNoSigner)
	assert.Equal(t, NoSignerMessage, s.Status().Message)

	s.Close()
	clock.Advance(time.Minute)
	assert.Equal(t, PhaseError, s.Status().Phase)
}

func TestSubmitter_WithRecordStore(t *testing.T) {
	clock := newFakeClock(epoch)
	signed := NewSignedKVStore(NewMemoryKVStore())
	store, err := NewRecordStore(signed, StoreConfig{Clock: clock})
	require.NoError(t, err)
	s, _ := newTestSubmitter(store, clock)

	_, err = s.Submit(context.Background(), validDraft("Borneo"))
	require.ErrorIs(t, err, ErrNoSigner)
	assert.Equal(t, NoSignerMessage, s.Status().Message)

	signed.Connect(SignerFunc(func(context.Context, string, []byte) error { return nil }))
	clock.Advance(DefaultErrorDelay)
	rec, err := s.Submit(context.Background(), validDraft("Borneo"))
	require.NoError(t, err)
	assert.Equal(t, SuccessMessage, s.Status().Message)

	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
}
