package forestlog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer

	// ignoreStop makes Stop a no-op, as if the callback had already been
	// dispatched when Stop was called.
	ignoreStop bool
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired || t.clock.ignoreStop {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every due timer in deadline order.
// Callbacks run without the clock lock held.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.when.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].when.Before(due[j].when) })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of timers neither fired nor stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

var errInjected = errors.New("injected failure")

// faultyKV wraps a KVStore and fails selected operations.
type faultyKV struct {
	KVStore

	mu        sync.Mutex
	failSet   map[string]error
	failGet   map[string]error
	availErr  error
	sets      int
	availCall int
}

func newFaultyKV(kv KVStore) *faultyKV {
	return &faultyKV{KVStore: kv, failSet: map[string]error{}, failGet: map[string]error{}}
}

func (f *faultyKV) IsAvailable(ctx context.Context) (bool, error) {
	f.mu.Lock()
	f.availCall++
	err := f.availErr
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.KVStore.IsAvailable(ctx)
}

func (f *faultyKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	err := f.failGet[key]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.KVStore.Get(ctx, key)
}

func (f *faultyKV) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.sets++
	err := f.failSet[key]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.KVStore.Set(ctx, key, value)
}

func (f *faultyKV) Sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func (f *faultyKV) AvailabilityCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.availCall
}

func validDraft(location string) Draft {
	return Draft{
		Location:      location,
		Year:          2024,
		ForestType:    Tropical,
		ChangeType:    Deforestation,
		SatelliteData: `{"ndvi":0.42}`,
	}
}
