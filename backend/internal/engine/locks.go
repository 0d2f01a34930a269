package engine

import (
	"sort"
	"sync"
)

// keyedLocks hands out per-entity read/write locks. A call locks all of its
// ids in sorted order, so two calls over overlapping id sets cannot deadlock.
// Entries are dropped once nobody holds or waits on them.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	rw   sync.RWMutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

// Lock takes the ids exclusively. Merges and deletes use it.
func (k *keyedLocks) Lock(ids ...string) func() {
	return k.acquire(ids, true)
}

// RLock takes the ids shared. Writes that must not interleave with a merge use it.
func (k *keyedLocks) RLock(ids ...string) func() {
	return k.acquire(ids, false)
}

// held reports how many ids currently have an entry
func (k *keyedLocks) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *keyedLocks) acquire(ids []string, exclusive bool) func() {
	keys := sortedUnique(ids)
	entries := make([]*lockEntry, len(keys))

	k.mu.Lock()
	for i, key := range keys {
		e, ok := k.entries[key]
		if !ok {
			e = &lockEntry{}
			k.entries[key] = e
		}
		e.refs++
		entries[i] = e
	}
	k.mu.Unlock()

	for _, e := range entries {
		if exclusive {
			e.rw.Lock()
		} else {
			e.rw.RLock()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(entries) - 1; i >= 0; i-- {
				if exclusive {
					entries[i].rw.Unlock()
				} else {
					entries[i].rw.RUnlock()
				}
			}

			k.mu.Lock()
			for i, key := range keys {
				entries[i].refs--
				if entries[i].refs == 0 {
					delete(k.entries, key)
				}
			}
			k.mu.Unlock()
		})
	}
}

func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
