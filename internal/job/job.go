// Package job implements the Anubis job system (C7): a dependency-aware
// worker pool executing a DAG of Jobs, distinguished by support for
// deferrable jobs — a job may suspend itself mid-pipeline by returning a
// continuation instead of blocking its worker on its own children.
package job

import (
	"context"
)

// ID identifies a Job within one Scheduler. IDs are assigned in
// submission order starting at 1; 0 is never a valid ID.
type ID uint64

// State is a Job's position in its lifecycle, per spec.md §3.
type State int

const (
	Pending State = iota
	Ready
	Running
	Deferred
	Succeeded
	Failed
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Deferred:
		return "deferred"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one a Job never leaves once reached.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Rejected
}

// Context is what a JobFn receives when the scheduler runs it. It is
// deliberately thin: job functions built by internal/rules close over
// whatever mode/toolchain/registry state they need, rather than reaching
// for it through a grab-bag context object, so Context only carries what
// the scheduler itself owns — cancellation, the abort signal, and the
// artifact store children publish their results through.
type Context struct {
	Ctx       context.Context
	Artifacts *ArtifactStore

	// Aborted reports whether the scheduler's process-wide abort flag has
	// been raised (spec.md §5), so a long-running external tool invocation
	// can check it between steps if it wants to bail out early. Workers
	// always finish their in-flight job rather than being killed.
	Aborted func() bool
}

// Fn is a job's function: it runs to completion or to its first
// suspension point, which is simply returning a Deferred Result.
type Fn func(jc *Context) Result

// resultKind discriminates the oneof inside Result.
type resultKind int

const (
	resultSuccess resultKind = iota
	resultError
	resultDeferred
)

// Deferral is the continuation a job hands back when it suspends: a set
// of not-yet-submitted child jobs, and the function to resume with once
// every child has succeeded. DependsOn names additional already-submitted
// jobs (typically another rule's root job, reused via GetOrAdd) the
// resumer also needs — spec.md §4.7 describes only "new_children", but a
// diamond dependency (scenario S3) needs the deferring job to also await
// a sibling rule's job it discovered by reusing an existing ID, not by
// submitting a fresh Spec; DependsOn covers that case without changing
// the new_children contract for the common "compile-then-link" shape.
type Deferral struct {
	Children  []Spec
	DependsOn []ID
	Resume    Fn
}

// Result is a JobFn's return value: exactly one of Success, Error, or
// Deferred, built with the matching constructor below.
type Result struct {
	kind     resultKind
	artifact Artifact
	err      error
	deferral Deferral
}

// Success builds a Result carrying a completed job's artifact.
func Success(a Artifact) Result {
	return Result{kind: resultSuccess, artifact: a}
}

// Failure builds a Result reporting a job failure.
func Failure(err error) Result {
	return Result{kind: resultError, err: err}
}

// Defer builds a Result that suspends the job: children are enqueued and
// the job is resumed with resume once all of them have succeeded.
func Defer(children []Spec, resume Fn) Result {
	return Result{kind: resultDeferred, deferral: Deferral{Children: children, Resume: resume}}
}

// DeferOn builds a Result that suspends the job on a mix of freshly
// submitted children and already-submitted job IDs (see Deferral).
func DeferOn(children []Spec, dependsOn []ID, resume Fn) Result {
	return Result{kind: resultDeferred, deferral: Deferral{Children: children, DependsOn: dependsOn, Resume: resume}}
}

// Spec describes a job to submit: its human-readable description, the
// IDs of jobs it depends on, and the function that runs it.
type Spec struct {
	Description string
	Depends     []ID
	Fn          Fn
}
