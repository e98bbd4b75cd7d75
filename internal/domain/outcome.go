package domain

// Outcome is the lifecycle path a work item is driven through.
type Outcome string

const (
	OutcomeClosed                 Outcome = "CLOSED"
	OutcomeResolved               Outcome = "RESOLVED"
	OutcomeLocked                 Outcome = "LOCKED"
	OutcomeInProgressWithComments Outcome = "IN_PROGRESS_WITH_COMMENTS"
	OutcomeInProgressNoComments   Outcome = "IN_PROGRESS_NO_COMMENTS"
)

// OutcomeQuota is how many items of one analyst's worklist take an outcome.
type OutcomeQuota struct {
	Outcome Outcome
	Count   int
}

// Quotas is the per-analyst outcome table, in processing order.
var Quotas = []OutcomeQuota{
	{Outcome: OutcomeClosed, Count: 2},
	{Outcome: OutcomeResolved, Count: 2},
	{Outcome: OutcomeLocked, Count: 2},
	{Outcome: OutcomeInProgressWithComments, Count: 2},
	{Outcome: OutcomeInProgressNoComments, Count: 2},
}

// ItemsPerAnalyst is the sum of Quotas.
func ItemsPerAnalyst() int {
	n := 0
	for _, q := range Quotas {
		n += q.Count
	}
	return n
}
