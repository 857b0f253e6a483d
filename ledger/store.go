package ledger

import "errors"

// ErrPersist marks a failed synchronous persist. The in-memory mutation it
// guarded has been discarded; the caller may retry next cycle.
var ErrPersist = errors.New("ledger: persist failed")

// Store is the durable backend for ledger records: load everything at
// startup, upsert one record per mutation.
type Store interface {
	LoadAll() (map[string]*Record, error)
	Upsert(*Record) error
	Close() error
}

// MemStore is an in-memory Store for tests and dry runs. FailUpserts forces
// Upsert errors to exercise rollback paths.
type MemStore struct {
	Records     map[string]*Record
	FailUpserts bool
	Upserts     int
}

func NewMemStore() *MemStore {
	return &MemStore{Records: map[string]*Record{}}
}

func (s *MemStore) LoadAll() (map[string]*Record, error) {
	out := make(map[string]*Record, len(s.Records))
	for k, v := range s.Records {
		out[k] = v.Clone()
	}
	return out, nil
}

func (s *MemStore) Upsert(r *Record) error {
	if s.FailUpserts {
		return errors.New("memstore: upsert disabled")
	}
	s.Records[r.ID] = r.Clone()
	s.Upserts++
	return nil
}

func (s *MemStore) Close() error { return nil }
