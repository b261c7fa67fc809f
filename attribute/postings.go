package attribute

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/vespa-engine/vespa-sub013/internal/enumstore"
	"github.com/vespa-engine/vespa-sub013/types"
)

// postingIndex maps enum id -> the set of lids currently holding that
// value, one inverted posting list per enum value, for fast_search
// attributes. Each posting list is a roaring.Bitmap, which gives the
// dense, union/intersection-friendly representation real inverted
// indexes use.
type postingIndex struct {
	mu    sync.RWMutex
	lists map[enumstore.EnumID]*roaring.Bitmap
}

func newPostingIndex() *postingIndex {
	return &postingIndex{lists: make(map[enumstore.EnumID]*roaring.Bitmap)}
}

func (p *postingIndex) add(id enumstore.EnumID, lid types.Lid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.lists[id]
	if !ok {
		b = roaring.New()
		p.lists[id] = b
	}
	b.Add(uint32(lid))
}

func (p *postingIndex) remove(id enumstore.EnumID, lid types.Lid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.lists[id]
	if !ok {
		return
	}
	b.Remove(uint32(lid))
	if b.IsEmpty() {
		delete(p.lists, id)
	}
}

// cardinality reports the size of one enum id's posting list, used for
// approximate_hits.
func (p *postingIndex) cardinality(id enumstore.EnumID) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if b, ok := p.lists[id]; ok {
		return b.GetCardinality()
	}
	return 0
}

// union ORs together the posting lists for every id in ids into a fresh
// bitmap, the candidate set for a multi-term or range query.
func (p *postingIndex) union(ids []enumstore.EnumID) *roaring.Bitmap {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := roaring.New()
	for _, id := range ids {
		if b, ok := p.lists[id]; ok {
			out.Or(b)
		}
	}
	return out
}
