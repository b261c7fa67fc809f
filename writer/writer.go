// Package writer implements the attribute writer: it partitions
// attribute vectors into single-threaded lanes keyed by a
// hash of the field name, so that one document's feed operation becomes
// at most one task per lane and a single vector is never mutated by two
// goroutines at once.
package writer

import (
	"context"
	"hash/fnv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vespa-engine/vespa-sub013/factory"
	"github.com/vespa-engine/vespa-sub013/types"
)

// task is one unit of work queued onto a lane.
type task func()

// lane is a single-threaded executor: tasks submitted to it run in
// submission order, one at a time, so for a single vector, writes
// observed by readers appear in lane submission order.
type lane struct {
	tasks chan task
	done  chan struct{}
}

func newLane(taskLimit int) *lane {
	if taskLimit <= 0 {
		taskLimit = 256
	}
	l := &lane{tasks: make(chan task, taskLimit), done: make(chan struct{})}
	go l.run()
	return l
}

func (l *lane) run() {
	for t := range l.tasks {
		t()
	}
	close(l.done)
}

func (l *lane) submit(t task) { l.tasks <- t }
func (l *lane) close()        { close(l.tasks) }

// Writer owns the lane pool and the shared compute pool used for
// two-phase puts on index-built (e.g. HNSW) fields.
type Writer struct {
	lanes       []*lane
	laneOf      map[string]int
	mu          sync.Mutex
	compute     *semaphore.Weighted
	hnswFields  map[string]bool
}

// New creates a writer with numLanes lanes and a shared compute pool
// bounded to computeParallelism concurrent prepare tasks.
func New(numLanes int, computeParallelism int64) *Writer {
	if numLanes <= 0 {
		numLanes = 4
	}
	if computeParallelism <= 0 {
		computeParallelism = 4
	}
	w := &Writer{
		laneOf:     make(map[string]int),
		hnswFields: make(map[string]bool),
		compute:    semaphore.NewWeighted(computeParallelism),
	}
	w.lanes = make([]*lane, numLanes)
	for i := range w.lanes {
		w.lanes[i] = newLane(0)
	}
	return w
}

// RegisterField assigns name to a lane (hash of the name, stable for
// the writer's lifetime) and, if hnsw is set, records the field as
// hnsw-backed. Nothing reads that record: Put and the other dispatch
// methods never route a field through TwoPhasePut, which callers invoke
// directly.
func (w *Writer) RegisterField(name string, hnsw bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	w.laneOf[name] = int(h.Sum32()) % len(w.lanes)
	if hnsw {
		w.hnswFields[name] = true
	}
}

func (w *Writer) laneFor(name string) *lane {
	w.mu.Lock()
	idx, ok := w.laneOf[name]
	w.mu.Unlock()
	if !ok {
		return w.lanes[0]
	}
	return w.lanes[idx]
}

// Put implements put(serial, doc, lid, on_done): apply every field in
// fields to its vector, on its lane, then call onDone once every lane
// involved has processed its task.
func (w *Writer) Put(fields map[string]factory.Vector, serial types.Serial, lid types.Lid, apply map[string]func(v factory.Vector, serial types.Serial, lid types.Lid) error, onDone func(error)) {
	w.dispatch(fields, func(name string, v factory.Vector) error {
		fn, ok := apply[name]
		if !ok {
			return nil
		}
		return fn(v, serial, lid)
	}, onDone)
}

// dispatch fans fn out across every field's lane and reports the first
// error (if any) once all lanes involved have run their task.
func (w *Writer) dispatch(fields map[string]factory.Vector, fn func(name string, v factory.Vector) error, onDone func(error)) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for name, v := range fields {
		wg.Add(1)
		name, v := name, v
		w.laneFor(name).submit(func() {
			defer wg.Done()
			if err := fn(name, v); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}
	go func() {
		wg.Wait()
		if onDone != nil {
			onDone(firstErr)
		}
	}()
}

// Update implements update(serial, doc, lid, on_done): a full-document
// replace, routing every registered field's new value to its lane via
// apply, the same dispatch Put uses.
func (w *Writer) Update(fields map[string]factory.Vector, serial types.Serial, lid types.Lid, apply map[string]func(v factory.Vector, serial types.Serial, lid types.Lid) error, onDone func(error)) {
	w.Put(fields, serial, lid, apply, onDone)
}

// UpdatePartial implements update(serial, doc_update, lid, on_done,
// on_field_cb): only the fields named in apply are touched (the rest of
// fields are left alone), and onFieldCb, if set, is called once per
// touched field as its lane finishes, before the aggregate onDone.
func (w *Writer) UpdatePartial(fields map[string]factory.Vector, serial types.Serial, lid types.Lid, apply map[string]func(v factory.Vector, serial types.Serial, lid types.Lid) error, onFieldCb func(field string, err error), onDone func(error)) {
	touched := make(map[string]factory.Vector, len(apply))
	for name := range apply {
		if v, ok := fields[name]; ok {
			touched[name] = v
		}
	}
	w.dispatch(touched, func(name string, v factory.Vector) error {
		err := apply[name](v, serial, lid)
		if onFieldCb != nil {
			onFieldCb(name, err)
		}
		return err
	}, onDone)
}

// Remove implements remove(serial, lid, on_done): clear lid on every
// registered field's lane.
func (w *Writer) Remove(fields map[string]factory.Vector, serial types.Serial, lid types.Lid, onDone func(error)) {
	w.dispatch(fields, func(_ string, v factory.Vector) error {
		return v.Clear(serial, lid)
	}, onDone)
}

// RemoveBatch implements remove(serial, lids[], on_done): clear every
// lid in lids on every registered field's lane, one lane task per
// field covering the whole batch so the batch is never interleaved
// with another operation on the same field.
func (w *Writer) RemoveBatch(fields map[string]factory.Vector, serial types.Serial, lids []types.Lid, onDone func(error)) {
	w.dispatch(fields, func(_ string, v factory.Vector) error {
		for _, lid := range lids {
			if err := v.Clear(serial, lid); err != nil {
				return err
			}
		}
		return nil
	}, onDone)
}

// TwoPhasePut implements a two-phase put for a field routed to a
// multi-threaded index builder: prepare runs on the shared
// compute pool (read-only for the vector), complete installs the result
// on the field's own lane.
func (w *Writer) TwoPhasePut(ctx context.Context, field string, v factory.Vector, prepare func(v factory.Vector) (any, error), complete func(v factory.Vector, candidate any) error, onDone func(error)) {
	go func() {
		if err := w.compute.Acquire(ctx, 1); err != nil {
			if onDone != nil {
				onDone(err)
			}
			return
		}
		candidate, err := prepare(v)
		w.compute.Release(1)
		if err != nil {
			if onDone != nil {
				onDone(err)
			}
			return
		}
		done := make(chan error, 1)
		w.laneFor(field).submit(func() {
			done <- complete(v, candidate)
		})
		if onDone != nil {
			onDone(<-done)
		}
	}()
}

// HeartBeat implements heartbeat(serial, on_done): advance last_serial
// on every lane without changing content, so idle lanes still let
// reclaim_unused_memory make progress.
func (w *Writer) HeartBeat(fields map[string]factory.Vector, serial types.Serial, onDone func(error)) {
	w.dispatch(fields, func(_ string, v factory.Vector) error {
		return v.Commit(serial)
	}, onDone)
}

// ForceCommit implements force_commit(params, on_done): a commit
// barrier across every lane.
func (w *Writer) ForceCommit(ctx context.Context, fields map[string]factory.Vector, serial types.Serial) error {
	g, _ := errgroup.WithContext(ctx)
	for name, v := range fields {
		name, v := name, v
		g.Go(func() error {
			done := make(chan error, 1)
			w.dispatch(map[string]factory.Vector{name: v}, func(_ string, vv factory.Vector) error {
				return vv.Commit(serial)
			}, func(err error) { done <- err })
			return <-done
		})
	}
	return g.Wait()
}

// Drain implements drain(on_done): enqueue a sentinel on every lane and
// wait for all of them to run, guaranteeing no task remains queued.
func (w *Writer) Drain() {
	var wg sync.WaitGroup
	for _, l := range w.lanes {
		wg.Add(1)
		l.submit(func() { wg.Done() })
	}
	wg.Wait()
}

// CompactLidSpace implements compact_lid_space(limit, serial) /
// on_replay_done(docid_limit): compact every vector's lid space down to
// limit. Vectors are not padded up to limit; a vector whose committed
// docid limit is below it reports that as an error.
func (w *Writer) CompactLidSpace(fields map[string]factory.Vector, limit types.Lid, onDone func(error)) {
	w.dispatch(fields, func(_ string, v factory.Vector) error {
		return v.CompactLidSpace(limit)
	}, onDone)
}

// Close shuts down every lane. It must only be called after Drain.
func (w *Writer) Close() {
	for _, l := range w.lanes {
		l.close()
	}
	for _, l := range w.lanes {
		<-l.done
	}
}
