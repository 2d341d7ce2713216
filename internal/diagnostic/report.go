package diagnostic

import (
	"strconv"
	"strings"
)

// Report aggregates the diagnostics produced over a build session so the
// top-level command can print a root-cause summary: Failed jobs first,
// Rejected jobs kept distinct so users aren't misled about which job
// actually broke.
type Report struct {
	Failed   []*Diagnostic
	Rejected []*Diagnostic
}

// AddFailed records a diagnostic for a job that actually failed (as
// opposed to one that was rejected because a dependency failed).
func (r *Report) AddFailed(d *Diagnostic) {
	r.Failed = append(r.Failed, d)
}

// AddRejected records a diagnostic for a job that never ran because a
// dependency failed.
func (r *Report) AddRejected(d *Diagnostic) {
	r.Rejected = append(r.Rejected, d)
}

// HasFailures reports whether any job actually failed (Rejected jobs alone
// do not count, since they never ran).
func (r *Report) HasFailures() bool {
	return len(r.Failed) > 0
}

// Summary renders every failed diagnostic, then every rejected one,
// followed by a one-line count.
func (r *Report) Summary() string {
	var b strings.Builder
	for _, d := range r.Failed {
		b.WriteString(d.Error())
		b.WriteString("\n")
	}
	for _, d := range r.Rejected {
		b.WriteString(d.Error())
		b.WriteString("\n")
	}
	if len(r.Failed) == 1 {
		b.WriteString("1 job failed")
	} else {
		b.WriteString(strconv.Itoa(len(r.Failed)))
		b.WriteString(" jobs failed")
	}
	if len(r.Rejected) > 0 {
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(len(r.Rejected)))
		b.WriteString(" rejected")
	}
	return b.String()
}
