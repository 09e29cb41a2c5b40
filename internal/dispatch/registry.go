package dispatch

import (
	"hash/fnv"
	"slices"
	"sync"
)

// registry maps source ids to their state. Entries are created on first
// Schedule and never removed.
//
// The map is split into shards keyed by an FNV-1a hash of the source id, so
// lookups for different sources rarely share a lock, and never hold one
// while a source's own mutex is taken.
type registry struct {
	shards []registryShard
}

type registryShard struct {
	mu      sync.RWMutex
	sources map[string]*sourceState
}

func newRegistry(shards int) *registry {
	r := &registry{shards: make([]registryShard, shards)}
	for i := range r.shards {
		r.shards[i].sources = make(map[string]*sourceState)
	}
	return r
}

func (r *registry) shard(id string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &r.shards[h.Sum32()%uint32(len(r.shards))]
}

// get returns the state for id without creating it.
func (r *registry) get(id string) (*sourceState, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sources[id]
	return s, ok
}

// getOrCreate returns the state for id, creating it on first reference.
func (r *registry) getOrCreate(id string) *sourceState {
	if s, ok := r.get(id); ok {
		return s
	}

	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok := sh.sources[id]; ok {
		return s
	}
	s := newSourceState(id)
	sh.sources[id] = s
	return s
}

// ids returns every known source id, sorted.
func (r *registry) ids() []string {
	var ids []string
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for id := range sh.sources {
			ids = append(ids, id)
		}
		sh.mu.RUnlock()
	}
	slices.Sort(ids)
	return ids
}
