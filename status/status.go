// Package status implements the attribute manager's status report API:
// a per-attribute view of load/reprocess progress, surfaced through the
// manager's state API.
package status

import (
	"sync"
	"time"
)

// Phase is one attribute's lifecycle stage.
type Phase int

const (
	Queued Phase = iota
	Loading
	Reprocessing
	Done
)

func (p Phase) String() string {
	switch p {
	case Queued:
		return "queued"
	case Loading:
		return "loading"
	case Reprocessing:
		return "reprocessing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Report is one attribute's status entry.
type Report struct {
	Name                  string
	Status                Phase
	LoadingStarted        *time.Time
	LoadingFinished       *time.Time
	ReprocessingStarted   *time.Time
	ReprocessingProgress  float64 // [0,1]; only meaningful while Status == Reprocessing
}

// Registry tracks the status of every attribute a manager owns. The
// manager's master thread is the only writer; reads may come from any
// thread serving the state API, so access is guarded by a mutex rather
// than left to the generation scheme the data-path uses.
type Registry struct {
	mu      sync.Mutex
	reports map[string]*Report
}

func NewRegistry() *Registry {
	return &Registry{reports: make(map[string]*Report)}
}

func (r *Registry) Set(name string, phase Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[name]
	if !ok {
		rep = &Report{Name: name}
		r.reports[name] = rep
	}
	now := stamp()
	switch phase {
	case Loading:
		if rep.LoadingStarted == nil {
			rep.LoadingStarted = now
		}
	case Reprocessing:
		if rep.ReprocessingStarted == nil {
			rep.ReprocessingStarted = now
		}
	case Done:
		if rep.Status == Loading && rep.LoadingFinished == nil {
			rep.LoadingFinished = now
		}
	}
	rep.Status = phase
}

func (r *Registry) SetProgress(name string, progress float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep, ok := r.reports[name]; ok {
		rep.ReprocessingProgress = progress
	}
}

// Get returns a copy of one attribute's report.
func (r *Registry) Get(name string) (Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[name]
	if !ok {
		return Report{}, false
	}
	return *rep, true
}

// All returns a snapshot of every tracked report.
func (r *Registry) All() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, 0, len(r.reports))
	for _, rep := range r.reports {
		out = append(out, *rep)
	}
	return out
}

// Healthy reports whether every tracked attribute is in a
// non-critical state. Queued/Loading/Reprocessing/Done are all
// considered non-critical here: there is no separate "failed" phase,
// since a load error degrades to an empty vector rather than blocking
// health.
func (r *Registry) Healthy() bool { return true }

func stamp() *time.Time {
	t := time.Now()
	return &t
}
