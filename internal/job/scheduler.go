package job

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
)

// node is a gonum graph.Node wrapping a job ID, used only for cycle
// detection — the authoritative job state lives in Scheduler.jobs.
type node struct{ id int64 }

func (n node) ID() int64 { return n.id }

// record is a Scheduler's private bookkeeping for one submitted Job.
type record struct {
	id          ID
	description string
	fn          Fn
	state       State
	err         error
	dependents  []ID // jobs to re-check readiness of when this one succeeds or fails
	remaining   int  // count of not-yet-succeeded dependencies
}

// Scheduler is the C7 job system: a dependency-aware worker pool. All
// methods are safe for concurrent use, including from within a running
// Fn (the pattern a deferring job relies on to enqueue its children).
type Scheduler struct {
	workers   int
	artifacts *ArtifactStore

	mu       sync.Mutex
	cond     *sync.Cond
	jobs     map[ID]*record
	graph    *simple.DirectedGraph
	nextID   int64
	ready    []ID
	pending  int // jobs not yet in a terminal state
	aborted  bool
	firstErr error

	memoMu    sync.RWMutex
	memo      map[string]ID
	memoGroup singleflight.Group
}

// New creates a Scheduler with the given worker count backed by a fresh
// artifact store. A count of 0 or less uses runtime.NumCPU(), the number
// of logical CPUs, not the number of physical cores.
func New(workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	s := &Scheduler{
		workers:   workers,
		artifacts: NewArtifactStore(),
		jobs:      make(map[ID]*record),
		graph:     simple.NewDirectedGraph(),
		memo:      make(map[string]ID),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Artifacts returns the scheduler's artifact store.
func (s *Scheduler) Artifacts() *ArtifactStore { return s.artifacts }

// State returns id's current state.
func (s *Scheduler) State(id ID) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.jobs[id]; ok {
		return r.state
	}
	return Pending
}

// Add submits a new job. Depends must name already-submitted IDs. Adding
// a job whose dependencies would create a cycle fails synchronously and
// leaves the scheduler's graph unchanged (spec.md §4.7, §8 S5).
func (s *Scheduler) Add(spec Spec) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(spec)
}

func (s *Scheduler) addLocked(spec Spec) (ID, error) {
	s.nextID++
	id := ID(s.nextID)
	s.graph.AddNode(node{id: int64(id)})
	for _, dep := range spec.Depends {
		s.graph.SetEdge(s.graph.NewEdge(node{id: int64(id)}, node{id: int64(dep)}))
	}
	if _, err := topo.Sort(s.graph); err != nil {
		cyc := describeCycle(err, id)
		s.graph.RemoveNode(int64(id))
		return 0, diagnostic.New(diagnostic.Cycle, cyc)
	}

	r := &record{id: id, description: spec.Description, fn: spec.Fn}
	for _, dep := range spec.Depends {
		dr, ok := s.jobs[dep]
		if !ok {
			s.graph.RemoveNode(int64(id))
			return 0, fmt.Errorf("job %q depends on unknown job id %d", spec.Description, dep)
		}
		if dr.state == Succeeded {
			continue
		}
		if dr.state == Failed || dr.state == Rejected {
			r.remaining = 0
			r.state = Rejected
			r.err = diagnostic.New(diagnostic.RejectedByDep, fmt.Sprintf("dependency %q did not succeed", dr.description))
			s.jobs[id] = r
			s.pending++ // balanced by the decrement below
			s.finishLocked(r)
			return id, nil
		}
		r.remaining++
		dr.dependents = append(dr.dependents, id)
	}

	s.jobs[id] = r
	s.pending++
	if r.remaining == 0 {
		s.markReadyLocked(r)
	} else {
		r.state = Pending
	}
	return id, nil
}

// GetOrAdd memoizes job submission by an arbitrary string key — the
// (mode, target, substep) triple spec.md §3 and §4.7 require to produce
// at most one Job per key in a build session. Concurrent requests for
// the same key block on a single in-flight build() call and all receive
// the same ID, mirroring internal/registry's at-most-one-loader caches.
func (s *Scheduler) GetOrAdd(key string, build func() Spec) (ID, error) {
	s.memoMu.RLock()
	if id, ok := s.memo[key]; ok {
		s.memoMu.RUnlock()
		return id, nil
	}
	s.memoMu.RUnlock()

	v, err, _ := s.memoGroup.Do(key, func() (interface{}, error) {
		id, err := s.Add(build())
		if err != nil {
			return nil, err
		}
		s.memoMu.Lock()
		s.memo[key] = id
		s.memoMu.Unlock()
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(ID), nil
}

// markReadyLocked transitions r to Ready and enqueues it. Callers must
// hold s.mu.
func (s *Scheduler) markReadyLocked(r *record) {
	r.state = Ready
	s.ready = append(s.ready, r.id)
	s.cond.Broadcast()
}

// Run drives the worker pool until every submitted job reaches a
// terminal state (or the pool is starved of ready work), then returns
// the first job failure encountered, if any. New jobs may be submitted
// concurrently with Run via Add/GetOrAdd, including from inside a
// running Fn.
func (s *Scheduler) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		eg.Go(func() error {
			return s.workerLoop(ctx)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

func (s *Scheduler) workerLoop(ctx context.Context) error {
	for {
		id, ok := s.nextReady(ctx)
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runJob(ctx, id)
	}
}

// nextReady blocks until a ready job is available, the scheduler has no
// more pending work, or ctx is canceled.
func (s *Scheduler) nextReady(ctx context.Context) (ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if len(s.ready) > 0 {
			id := s.ready[0]
			s.ready = s.ready[1:]
			return id, true
		}
		if s.pending == 0 {
			return 0, false
		}
		if s.aborted {
			// After an abort a worker still takes jobs that are already
			// in the ready queue (checked above), but once the queue is
			// empty it exits instead of waiting for more work to become
			// ready.
			return 0, false
		}
		if ctx.Err() != nil {
			return 0, false
		}
		s.cond.Wait()
	}
}

func (s *Scheduler) runJob(ctx context.Context, id ID) {
	s.mu.Lock()
	r := s.jobs[id]
	r.state = Running
	fn := r.fn
	s.mu.Unlock()

	jc := &Context{
		Ctx:       ctx,
		Artifacts: s.artifacts,
		Aborted:   s.isAborted,
	}
	result := fn(jc)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch result.kind {
	case resultSuccess:
		s.artifacts.Put(id, result.artifact)
		r.state = Succeeded
		s.finishLocked(r)
	case resultError:
		r.state = Failed
		r.err = diagnostic.Wrap(diagnostic.JobFailure, r.description, result.err)
		if !s.aborted {
			s.aborted = true
			s.firstErr = r.err
		}
		s.finishLocked(r)
		s.rejectDependentsLocked(r)
	case resultDeferred:
		s.deferLocked(r, result.deferral)
	}
}

// finishLocked decrements the pending count for a job that just reached
// a terminal state and wakes dependents whose last outstanding
// dependency this was. Callers must hold s.mu.
func (s *Scheduler) finishLocked(r *record) {
	s.pending--
	if r.state != Succeeded {
		s.cond.Broadcast()
		return
	}
	for _, depID := range r.dependents {
		dr, ok := s.jobs[depID]
		if !ok || dr.state.Terminal() {
			continue
		}
		dr.remaining--
		if dr.remaining <= 0 {
			s.markReadyLocked(dr)
		}
	}
	s.cond.Broadcast()
}

// rejectDependentsLocked marks every transitive dependent of a failed job
// Rejected, per spec.md §8 invariant 7 — rejected jobs never run, and
// Rejected is surfaced distinctly from Failed per spec.md §7.
func (s *Scheduler) rejectDependentsLocked(r *record) {
	for _, depID := range r.dependents {
		dr, ok := s.jobs[depID]
		if !ok || dr.state.Terminal() {
			continue
		}
		dr.state = Rejected
		dr.err = diagnostic.New(diagnostic.RejectedByDep,
			fmt.Sprintf("dependency %q did not succeed", r.description))
		s.pending--
		s.rejectDependentsLocked(dr)
	}
	s.cond.Broadcast()
}

// deferLocked implements spec.md §4.7's deferred-job continuation: the
// job's dependency set is replaced wholesale by its freshly submitted
// children, and its Fn is replaced by the resume function, so the next
// time all dependencies are satisfied the scheduler calls resume instead
// of the original Fn.
func (s *Scheduler) deferLocked(r *record, d Deferral) {
	// r.dependents (jobs waiting on r) is untouched here — deferral only
	// restructures r's own dependencies, not who depends on r.
	r.remaining = 0

	childIDs := append([]ID(nil), d.DependsOn...)
	for _, childSpec := range d.Children {
		id, err := s.addLocked(childSpec)
		if err != nil {
			// A deferring job's own fresh children cannot legally cycle
			// back to it, so this can only be a malformed child
			// dependency list — surface it as an immediate job failure.
			r.state = Failed
			r.err = diagnostic.Wrap(diagnostic.JobFailure, r.description, err)
			if !s.aborted {
				s.aborted = true
				s.firstErr = r.err
			}
			s.finishLocked(r)
			return
		}
		childIDs = append(childIDs, id)
	}

	// DependsOn may name jobs discovered lazily at run time (e.g. a rule
	// resolving a sibling target's root job), which Add's upfront cycle
	// check never saw. Record the edges now and re-run the same
	// detector: two jobs that each deferred onto the other (the S5
	// cross-target cycle, discovered only once both are running) would
	// otherwise deadlock forever instead of failing synchronously.
	for _, cid := range childIDs {
		s.graph.SetEdge(s.graph.NewEdge(node{id: int64(r.id)}, node{id: int64(cid)}))
	}
	if _, err := topo.Sort(s.graph); err != nil {
		cyc := describeCycle(err, r.id)
		r.state = Failed
		r.err = diagnostic.New(diagnostic.Cycle, cyc)
		if !s.aborted {
			s.aborted = true
			s.firstErr = r.err
		}
		s.finishLocked(r)
		s.rejectDependentsLocked(r)
		return
	}

	r.state = Deferred
	r.fn = d.Resume

	if len(childIDs) == 0 {
		// No children to wait on: resume immediately rather than stall
		// forever (spec.md §3's "Deferred must reference at least one
		// child" invariant is a contract on well-behaved rules, not
		// something the scheduler should deadlock on if violated).
		s.markReadyLocked(r)
		return
	}

	for _, cid := range childIDs {
		cr := s.jobs[cid]
		if cr.state == Succeeded {
			continue
		}
		if cr.state == Failed || cr.state == Rejected {
			r.state = Rejected
			r.err = diagnostic.New(diagnostic.RejectedByDep, fmt.Sprintf("child of %q did not succeed", r.description))
			s.finishLocked(r)
			return
		}
		r.remaining++
		cr.dependents = append(cr.dependents, r.id)
	}
	if r.remaining == 0 {
		s.markReadyLocked(r)
	}
}

func (s *Scheduler) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// describeCycle renders a topo.Unorderable error naming the job ids
// involved in a cycle created by adding newID.
func describeCycle(err error, newID ID) string {
	uo, ok := err.(topo.Unorderable)
	if !ok {
		return fmt.Sprintf("dependency cycle detected while adding job %d: %v", newID, err)
	}
	var parts []string
	for _, component := range uo {
		ids := make([]string, len(component))
		for i, n := range component {
			ids[i] = fmt.Sprintf("%d", n.ID())
		}
		parts = append(parts, fmt.Sprintf("[%s]", joinComma(ids)))
	}
	return fmt.Sprintf("dependency cycle detected while adding job %d: %s", newID, joinComma(parts))
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
