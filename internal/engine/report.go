package engine

import (
	"github.com/hashicorp/go-multierror"

	"deskseed/internal/domain"
)

// Report summarises what a run did.
type Report struct {
	RunID string
	Flow  string
	Seed  uint64

	TotalActors  int
	UsableActors int
	Promoted     int
	Taxonomy     int
	Created      int
	Assigned     int
	Analysts     []AnalystReport

	Articles         int
	SurveysCompleted int
	SurveysSkipped   int

	Failures *multierror.Error
}

// AnalystReport is the lifecycle tally of one analyst's worklist.
type AnalystReport struct {
	Analyst  string
	Worklist int
	Outcomes []OutcomeReport
}

type OutcomeReport struct {
	Outcome   domain.Outcome
	Planned   int
	Completed int
	Abandoned int
	Shortfall int
}

func (r *Report) fail(err error) {
	if r == nil || err == nil {
		return
	}
	r.Failures = multierror.Append(r.Failures, err)
}

// Err returns the accumulated item failures, or nil.
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	return r.Failures.ErrorOrNil()
}

// FailureCount is the number of accumulated item failures.
func (r *Report) FailureCount() int {
	if r == nil || r.Failures == nil {
		return 0
	}
	return len(r.Failures.Errors)
}
