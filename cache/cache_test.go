package cache

import (
	"errors"
	"sync"

	"github.com/coldrun/objectstore/holder"
)

// memStore is a trivial in-memory Store stand-in for cache tests, avoiding
// a dependency on the blockstore package here.
type memStore struct {
	mu   sync.Mutex
	data map[int][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[int][]byte)} }

func (s *memStore) Get(objnum int) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[objnum]
	if !ok {
		return nil, false, nil
	}
	cp := append([]byte(nil), b...)
	return cp, true, nil
}

func (s *memStore) Put(objnum int, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objnum] = append([]byte(nil), payload...)
	return nil
}

func (s *memStore) Check(objnum int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[objnum]
	return ok
}

func (s *memStore) Del(objnum int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[objnum]; !ok {
		return errors.New("not found")
	}
	delete(s.data, objnum)
	return nil
}

func (s *memStore) Sync() error { return nil }

func (s *memStore) First() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best, ok := 0, false
	for k := range s.data {
		if !ok || k < best {
			best, ok = k, true
		}
	}
	return best, ok
}

func (s *memStore) Next(n int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best, ok := 0, false
	for k := range s.data {
		if k > n && (!ok || k < best) {
			best, ok = k, true
		}
	}
	return best, ok
}
