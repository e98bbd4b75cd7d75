package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"deskseed/internal/desk"
	"deskseed/internal/domain"
)

// Worklists maps each analyst to the items assigned to them. Order lists
// every analyst once, in roster order, even those left without items.
// Assignments records each successful assign call in issue order.
type Worklists struct {
	Order       []string
	By          map[string][]domain.WorkItem
	Assignments []domain.Assignment
}

func newWorklists(analysts []*domain.Actor) Worklists {
	w := Worklists{By: make(map[string][]domain.WorkItem, len(analysts))}
	for _, a := range analysts {
		if _, dup := w.By[a.Username]; dup {
			continue
		}
		w.Order = append(w.Order, a.Username)
		w.By[a.Username] = nil
	}
	return w
}

// Total counts successful assignments.
func (w Worklists) Total() int { return len(w.Assignments) }

// AssignSubset shuffles items, takes the first min(count, len(items)) and
// assigns element i to analysts[i mod len(analysts)]. With a nil assigner
// each analyst takes the item with their own session; otherwise every call
// uses the assigner's. Failed assignments are logged and skipped.
func (e Engine) AssignSubset(ctx context.Context, items []domain.WorkItem, analysts []*domain.Actor, assigner *domain.Actor, count int) Worklists {
	l := e.phase("assign")
	w := newWorklists(analysts)
	if len(analysts) == 0 {
		l.Warn("no analysts; nothing assigned")
		return w
	}
	n := count
	if n > len(items) {
		n = len(items)
	}
	if n < 0 {
		n = 0
	}
	mode := "self"
	if assigner != nil {
		mode = assigner.Username
	}
	l.WithFields(log.Fields{"items": len(items), "count": n, "assigner": mode}).Info("phase start")
	subset := shuffle(e.Rand, items)[:n]
	for i, item := range subset {
		analyst := analysts[i%len(analysts)]
		by := analyst
		if assigner != nil {
			by = assigner
		}
		il := l.WithFields(log.Fields{"item": item.ID, "analyst": analyst.Username, "actor": by.Username})
		err := e.call(ctx, desk.OpAssign, by, item.ID, func(ctx context.Context) error {
			return e.Desk.Assign(ctx, by.Token, item.ID, analyst.RemoteID)
		})
		if err != nil {
			il.WithError(err).Error("assign failed")
			e.Report.fail(ItemError{ItemID: item.ID, Err: err})
			continue
		}
		w.By[analyst.Username] = append(w.By[analyst.Username], item)
		w.Assignments = append(w.Assignments, domain.Assignment{WorkItemID: item.ID, AnalystUsername: analyst.Username, AssignedBy: by.Username})
		il.Debug("assigned")
	}
	if e.Report != nil {
		e.Report.Assigned += w.Total()
	}
	l.WithField("assigned", w.Total()).Info("phase done")
	return w
}
