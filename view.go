package forestlog

import (
	"context"
	"strings"
	"sync"
)

// Lister is the read side of RecordStore.
type Lister interface {
	List(ctx context.Context) ([]Record, error)
}

// Stats summarizes a record set.
type Stats struct {
	Total         int
	Deforestation int
	Reforestation int
}

// ComputeStats counts records by change type.
func ComputeStats(records []Record) Stats {
	st := Stats{Total: len(records)}
	for _, r := range records {
		switch r.ChangeType {
		case Deforestation:
			st.Deforestation++
		case Reforestation:
			st.Reforestation++
		}
	}
	return st
}

// Filter keeps records whose location or forest type contains term,
// ignoring case. An empty term keeps everything.
func Filter(records []Record, term string) []Record {
	term = strings.ToLower(term)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Location), term) ||
			strings.Contains(strings.ToLower(string(r.ForestType)), term) {
			out = append(out, r)
		}
	}
	return out
}

// ViewModel holds the loaded records and search term behind the record
// browser, and re-lists after each successful submission.
type ViewModel struct {
	lister    Lister
	submitter *Submitter

	mu         sync.RWMutex
	records    []Record
	search     string
	refreshing bool
}

// NewViewModel creates a ViewModel reading from store.
// cfg.OnSuccess, if set, runs before the automatic refresh.
func NewViewModel(store interface {
	Lister
	Creator
}, cfg SubmitterConfig) *ViewModel {
	vm := &ViewModel{lister: store}
	log := orDiscard(cfg.Logger)
	onSuccess := cfg.OnSuccess
	cfg.OnSuccess = func(ctx context.Context, r Record) {
		if onSuccess != nil {
			onSuccess(ctx, r)
		}
		if err := vm.Refresh(ctx); err != nil {
			log.Warn("refresh after submit failed", "id", r.ID, "err", err)
		}
	}
	vm.submitter = NewSubmitter(store, cfg)
	return vm
}

// Submitter returns the view's submission state machine.
func (vm *ViewModel) Submitter() *Submitter {
	return vm.submitter
}

// Refresh reloads the records. A refresh already in progress makes this a
// no-op. On error the previous records are kept.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	vm.mu.Lock()
	if vm.refreshing {
		vm.mu.Unlock()
		return nil
	}
	vm.refreshing = true
	vm.mu.Unlock()

	records, err := vm.lister.List(ctx)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.refreshing = false
	if err != nil {
		return err
	}
	vm.records = records
	return nil
}

// Refreshing reports whether a Refresh is running.
func (vm *ViewModel) Refreshing() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.refreshing
}

// SetSearch sets the search term applied by Visible.
func (vm *ViewModel) SetSearch(term string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.search = term
}

// Records returns all loaded records, newest first.
func (vm *ViewModel) Records() []Record {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]Record(nil), vm.records...)
}

// Visible returns the loaded records matching the search term.
func (vm *ViewModel) Visible() []Record {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return Filter(vm.records, vm.search)
}

// Stats summarizes all loaded records, ignoring the search term.
func (vm *ViewModel) Stats() Stats {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return ComputeStats(vm.records)
}

// Submit submits the held draft.
func (vm *ViewModel) Submit(ctx context.Context) (Record, error) {
	return vm.submitter.SubmitDraft(ctx)
}
