package attribute

import (
	"fmt"
	"regexp"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/vespa-engine/vespa-sub013/internal/enumstore"
	"github.com/vespa-engine/vespa-sub013/internal/multivalue"
	"github.com/vespa-engine/vespa-sub013/types"
)

// SearchContext binds one query term to one attribute, following
// `create_search_context`. It decides once, at construction time,
// whether the enum store and posting lists can narrow the candidate set
// or whether every committed lid must be checked by predicate.
type SearchContext[T any] struct {
	v         *Typed[T]
	term      types.QueryTerm
	predicate func(value T) bool
	enumIDs   []enumstore.EnumID // non-nil iff the enum store fully resolved the term's candidates
}

// CreateSearchContext implements create_search_context(query_term).
func (v *Typed[T]) CreateSearchContext(term types.QueryTerm) (*SearchContext[T], error) {
	predicate, err := v.buildPredicate(term)
	if err != nil {
		return nil, err
	}
	sc := &SearchContext[T]{v: v, term: term, predicate: predicate}
	if v.enums != nil {
		sc.enumIDs = v.resolveEnumIDs(term)
	}
	return sc, nil
}

func (v *Typed[T]) buildPredicate(term types.QueryTerm) (func(T) bool, error) {
	eq := v.matchEq()
	switch term.Kind {
	case types.QueryExact:
		if v.ops != nil {
			want := v.ops.FromFloat(term.Number)
			return func(x T) bool { return eq(x, want) }, nil
		}
		if v.fromText == nil {
			return nil, fmt.Errorf("attribute %q: exact text query on a non-string attribute", v.name)
		}
		want := v.fromText(term.Text)
		return func(x T) bool { return eq(x, want) }, nil

	case types.QueryRange:
		if v.ops == nil || v.less == nil {
			return nil, fmt.Errorf("attribute %q: range query requires a numeric ordering", v.name)
		}
		lo := v.ops.FromFloat(term.Low.Value)
		hi := v.ops.FromFloat(term.High.Value)
		return func(x T) bool {
			if !term.Low.Open && v.less(x, lo) {
				return false
			}
			if !term.High.Open && v.less(hi, x) {
				return false
			}
			return true
		}, nil

	case types.QueryPrefix:
		if v.toText == nil {
			return nil, fmt.Errorf("attribute %q: prefix query on a non-string attribute", v.name)
		}
		prefix := enumstore.Fold(term.Text)
		return func(x T) bool {
			s := enumstore.Fold(v.toText(x))
			return len(s) >= len(prefix) && s[:len(prefix)] == prefix
		}, nil

	case types.QueryRegex:
		if v.toText == nil {
			return nil, fmt.Errorf("attribute %q: regex query on a non-string attribute", v.name)
		}
		re, err := regexp.Compile(term.Text)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: invalid regex %q: %w", v.name, term.Text, err)
		}
		return func(x T) bool { return re.MatchString(v.toText(x)) }, nil

	case types.QueryFuzzy:
		if v.toText == nil {
			return nil, fmt.Errorf("attribute %q: fuzzy query on a non-string attribute", v.name)
		}
		target := term.Text
		maxDist := term.MaxEditDistance
		prefixLen := term.PrefixLength
		return func(x T) bool {
			s := v.toText(x)
			if prefixLen > 0 {
				n := prefixLen
				if n > len(s) {
					n = len(s)
				}
				if n > len(target) || s[:n] != target[:n] {
					return false
				}
			}
			return levenshteinWithin(s, target, maxDist)
		}, nil

	default:
		return nil, fmt.Errorf("attribute %q: unsupported query term kind %d", v.name, term.Kind)
	}
}

// resolveEnumIDs narrows a term to a concrete set of enum ids using the
// ordered dictionary, when the term's shape allows it. It returns nil
// when no such narrowing applies, so the caller falls back to a full
// scan checked against the predicate.
func (v *Typed[T]) resolveEnumIDs(term types.QueryTerm) []enumstore.EnumID {
	if v.queryEq != nil && v.toText != nil && !v.config.Flags.Cased {
		// Case variants of one string are separate dictionary entries, so
		// a dictionary lookup would miss some of them: scan instead.
		return nil
	}
	switch term.Kind {
	case types.QueryExact:
		var want T
		if v.ops != nil {
			want = v.ops.FromFloat(term.Number)
		} else if v.fromText != nil {
			want = v.fromText(term.Text)
		} else {
			return nil
		}
		if id, ok := v.enums.Lookup(want); ok {
			return []enumstore.EnumID{id}
		}
		return []enumstore.EnumID{}

	case types.QueryPrefix:
		if v.fromText == nil {
			return nil
		}
		lo := v.fromText(enumstore.Fold(term.Text))
		hiText := enumstore.FoldedPrefixUpperBound(term.Text)
		hi := v.fromText(hiText)
		var ids []enumstore.EnumID
		v.enums.AscendIDsInRange(lo, hi, func(id enumstore.EnumID) bool {
			ids = append(ids, id)
			return true
		})
		return ids

	case types.QueryRange:
		if v.ops == nil || term.Low.Open || term.High.Open {
			return nil // open-ended bounds have no finite lower/upper probe value
		}
		lo := v.ops.FromFloat(term.Low.Value)
		hi := v.ops.FromFloat(term.High.Value)
		var ids []enumstore.EnumID
		v.enums.AscendIDsInRange(lo, hi, func(id enumstore.EnumID) bool {
			ids = append(ids, id)
			return true
		})
		if id, ok := v.enums.Lookup(hi); ok {
			ids = append(ids, id) // AscendIDsInRange's hi bound is exclusive; the range itself is closed
		}
		return ids

	default:
		return nil // regex/fuzzy have no ordered-range shortcut
	}
}

// ApproximateHits implements approximate_hits(): an upper-bound estimate
// of matching documents, cheap enough to call during query planning.
func (sc *SearchContext[T]) ApproximateHits() uint64 {
	if sc.v.postings != nil && sc.enumIDs != nil {
		var sum uint64
		for _, id := range sc.enumIDs {
			sum += sc.v.postings.cardinality(id)
		}
		return sum
	}
	return uint64(sc.v.CommittedDocidLimit())
}

// FetchPostings implements fetch_postings(): the resolved enum ids this
// context will search, when the enum store could narrow the term: nil
// otherwise. Callers use this to decide whether a cheaper plan (e.g.
// skipping the attribute entirely when the set is empty) is available.
func (sc *SearchContext[T]) FetchPostings() ([]enumstore.EnumID, bool) {
	if sc.enumIDs == nil {
		return nil, false
	}
	return sc.enumIDs, true
}

// Matches implements matches(lid[, element_index]): the element-level
// primitive the scoring framework calls directly, without going through
// an iterator. For a single-value attribute elementIndex is ignored and
// the weight is always 1. For a multi-value attribute, passing an
// elementIndex checks only that element (out of range reports no
// match); omitting it reports the first matching element, following
// the same first-match-wins semantics as a scan iterator.
func (sc *SearchContext[T]) Matches(lid types.Lid, elementIndex ...int) (bool, int32) {
	v := sc.v
	if v.multi != nil {
		elems := v.multi.Get(lid)
		if len(elementIndex) > 0 {
			idx := elementIndex[0]
			if idx < 0 || idx >= len(elems) {
				return false, 0
			}
			e := elems[idx]
			return sc.predicate(e.Value), e.Weight
		}
		for _, e := range elems {
			if sc.predicate(e.Value) {
				return true, e.Weight
			}
		}
		return false, 0
	}
	if sc.predicate(v.single.Get(lid)) {
		return true, 1
	}
	return false, 0
}

// Iterator implements the create_iterator contract: an in-order,
// duplicate-free walk over matching lids.
type Iterator struct {
	bitmap *roaring.Bitmap
	it     roaring.IntPeekable
	scan   []types.Lid
	pos    int
	strict bool
}

// Next advances the iterator, returning (lid, true) or (0, false) when
// exhausted. Strict and non-strict iterators behave the same here: both
// walk every matching lid in ascending order, and there is no seek to a
// caller-chosen lid. The strict flag is only recorded and reported by
// Strict.
func (it *Iterator) Next() (types.Lid, bool) {
	if it.bitmap != nil {
		if !it.it.HasNext() {
			return 0, false
		}
		return types.Lid(it.it.Next()), true
	}
	if it.pos >= len(it.scan) {
		return 0, false
	}
	lid := it.scan[it.pos]
	it.pos++
	return lid, true
}

// Strict reports whether this iterator was built as a strict evaluator.
func (it *Iterator) Strict() bool { return it.strict }

// CreateIterator implements create_iterator(strict): when the enum
// store fully resolved the term, the iterator walks a roaring-bitmap
// union of the matching posting lists (fast_search); otherwise it scans
// every committed lid and re-checks the predicate.
func (sc *SearchContext[T]) CreateIterator(strict bool) *Iterator {
	if sc.v.postings != nil && sc.enumIDs != nil {
		bm := sc.v.postings.union(sc.enumIDs)
		return &Iterator{bitmap: bm, it: bm.Iterator(), strict: strict}
	}
	return &Iterator{scan: sc.scanCandidates(), strict: strict}
}

func (sc *SearchContext[T]) scanCandidates() []types.Lid {
	v := sc.v
	limit := v.CommittedDocidLimit()
	var out []types.Lid
	for lid := types.ReservedLid + 1; lid < limit; lid++ {
		if v.multi != nil {
			elems := v.multi.Get(lid)
			if matchesAny(elems, sc.predicate) {
				out = append(out, lid)
			}
			continue
		}
		if sc.predicate(v.single.Get(lid)) {
			out = append(out, lid)
		}
	}
	return out
}

func matchesAny[T any](elems []multivalue.Element[T], predicate func(T) bool) bool {
	for _, e := range elems {
		if predicate(e.Value) {
			return true
		}
	}
	return false
}

// levenshteinWithin reports whether the edit distance between a and b is
// <= max, short-circuiting on the length bound so a large max doesn't
// force full computation for obviously-too-different strings.
func levenshteinWithin(a, b string, max int) bool {
	if max < 0 {
		return a == b
	}
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > max {
		return false
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
			if m < rowMin {
				rowMin = m
			}
		}
		if rowMin > max {
			return false
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)] <= max
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
