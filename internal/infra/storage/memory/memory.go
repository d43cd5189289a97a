package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/snap2pass/internal/core/domain"
	"github.com/vietddude/snap2pass/internal/infra/storage"
)

// MemoryStorage backs the in-process repositories. States are kept encoded so
// callers never share a *domain.TrialState with the store.
type MemoryStorage struct {
	states   map[string][]byte
	outcomes []*storage.OutcomeRecord
	nextID   int64
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		states: make(map[string][]byte),
	}
}

// -----------------------------------------------------------------------------
// Trial State Store
// -----------------------------------------------------------------------------

type TrialStateStore struct {
	store *MemoryStorage
}

func NewTrialStateStore(store *MemoryStorage) *TrialStateStore {
	return &TrialStateStore{store: store}
}

func (r *TrialStateStore) Get(ctx context.Context, key string) (*domain.TrialState, error) {
	r.store.mu.RLock()
	data, ok := r.store.states[key]
	r.store.mu.RUnlock()
	if !ok {
		return nil, storage.ErrStateNotFound
	}
	return storage.UnmarshalTrialState(data)
}

func (r *TrialStateStore) Save(ctx context.Context, state *domain.TrialState) error {
	data, err := storage.MarshalTrialState(state)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.states[state.Key] = data
	return nil
}

func (r *TrialStateStore) Delete(ctx context.Context, key string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.states, key)
	return nil
}

// -----------------------------------------------------------------------------
// Outcome Repository
// -----------------------------------------------------------------------------

type OutcomeRepo struct {
	store *MemoryStorage
}

func NewOutcomeRepo(store *MemoryStorage) *OutcomeRepo {
	return &OutcomeRepo{store: store}
}

func (r *OutcomeRepo) Save(ctx context.Context, rec *storage.OutcomeRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextID++
	rec.ID = r.store.nextID
	cp := *rec
	r.store.outcomes = append(r.store.outcomes, &cp)
	return nil
}

func (r *OutcomeRepo) List(ctx context.Context, f storage.OutcomeFilter) ([]*storage.OutcomeRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*storage.OutcomeRecord
	for _, rec := range r.store.outcomes {
		if f.KeyPrefix != "" && !strings.HasPrefix(rec.Key, f.KeyPrefix) {
			continue
		}
		if f.RequestID != "" && rec.RequestID != f.RequestID {
			continue
		}
		if f.Kind != "" && rec.Kind != f.Kind {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *OutcomeRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.outcomes[:0]
	var deleted int64
	for _, rec := range r.store.outcomes {
		if rec.RecordedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	r.store.outcomes = kept
	return deleted, nil
}
