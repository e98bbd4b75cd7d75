package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"deskseed/internal/domain"
)

// Flow names.
const (
	FlowTickets = "tickets"
	FlowKB      = "kb"
	FlowSurveys = "surveys"
)

// RunTickets seeds tickets: authenticate, resolve the taxonomy, create
// items, assign a subset to the analyst roster and drive the lifecycle.
// Every phase completes before the next starts; a FatalPrecondition stops
// the run before any later call is issued.
func (e Engine) RunTickets(ctx context.Context, opts RunOptions) (*Report, error) {
	opts = opts.withDefaults()
	e.begin(FlowTickets)
	l := e.log().WithField("flow", FlowTickets)
	l.WithFields(log.Fields{"items": opts.Items, "taxonomy": opts.Taxonomy}).Info("run start")

	if _, err := e.AuthenticateAll(ctx); err != nil {
		return e.Report, err
	}
	e.PromoteAnalysts(ctx)

	admin, _ := e.Registry.FirstUsable(domain.RoleAdministrator)
	taxonomy, err := e.ResolveWorkingSet(ctx, admin, opts.Taxonomy)
	if err != nil {
		return e.Report, err
	}
	employees := e.Registry.Usable(domain.RoleEmployee)
	if len(employees) == 0 {
		return e.Report, fatalf(nil, "no usable employee to author items")
	}
	analysts := e.Registry.Usable(domain.RoleAnalyst)
	if len(analysts) < RequiredAnalysts {
		return e.Report, fatalf(nil, "need %d usable analysts, have %d", RequiredAnalysts, len(analysts))
	}
	analysts = analysts[:RequiredAnalysts]

	items := e.CreateItems(ctx, employees, taxonomy, opts.Items)
	required := RequiredAnalysts * domain.ItemsPerAnalyst()
	if len(items) < required {
		return e.Report, fatalf(nil, "created %d items, need %d for assignment", len(items), required)
	}

	var assigner *domain.Actor
	if opts.AdminAssigns {
		assigner = admin
	}
	worklists := e.AssignSubset(ctx, items, analysts, assigner, required)
	e.RunLifecycle(ctx, worklists, analysts)

	l.WithField("failures", e.Report.FailureCount()).Info("run done")
	return e.Report, ctx.Err()
}

func (e Engine) begin(flow string) {
	if e.Report != nil && e.Report.Flow == "" {
		e.Report.Flow = flow
	}
}
