package engine

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"deskseed/internal/content"
	"deskseed/internal/desk"
	"deskseed/internal/domain"
)

// Cursor is a forward-only iterator over a worklist. Items handed out by
// Take are never handed out again.
type Cursor struct {
	items []domain.WorkItem
	pos   int
}

func NewCursor(items []domain.WorkItem) *Cursor {
	return &Cursor{items: items}
}

// Take returns up to n of the next items and advances past them.
func (c *Cursor) Take(n int) []domain.WorkItem {
	if n <= 0 {
		return nil
	}
	end := c.pos + n
	if end > len(c.items) {
		end = len(c.items)
	}
	out := c.items[c.pos:end:end]
	c.pos = end
	return out
}

func (c *Cursor) Remaining() int { return len(c.items) - c.pos }

// Partition is the slice of a worklist given to one outcome.
type Partition struct {
	Outcome   domain.Outcome
	Items     []domain.WorkItem
	Shortfall int
}

// Partitions carves worklist into outcome partitions following quotas in
// order. A partition the worklist runs out on is short; later partitions
// get nothing.
func Partitions(worklist []domain.WorkItem, quotas []domain.OutcomeQuota) []Partition {
	cur := NewCursor(worklist)
	parts := make([]Partition, 0, len(quotas))
	for _, q := range quotas {
		items := cur.Take(q.Count)
		parts = append(parts, Partition{Outcome: q.Outcome, Items: items, Shortfall: q.Count - len(items)})
	}
	return parts
}

// RunLifecycle drives every analyst's worklist through the outcome quotas.
// Each worklist is shuffled once and then partitioned; a failed action
// abandons its item and the partition moves on.
func (e Engine) RunLifecycle(ctx context.Context, w Worklists, analysts []*domain.Actor) []AnalystReport {
	l := e.phase("lifecycle")
	l.WithField("analysts", len(w.Order)).Info("phase start")
	byName := make(map[string]*domain.Actor, len(analysts))
	for _, a := range analysts {
		byName[a.Username] = a
	}
	var reports []AnalystReport
	for _, name := range w.Order {
		if ctx.Err() != nil {
			break
		}
		analyst, ok := byName[name]
		if !ok {
			l.WithField("analyst", name).Error("analyst missing from roster")
			continue
		}
		reports = append(reports, e.runWorklist(ctx, analyst, w.By[name], l))
	}
	if e.Report != nil {
		e.Report.Analysts = append(e.Report.Analysts, reports...)
	}
	l.Info("phase done")
	return reports
}

func (e Engine) runWorklist(ctx context.Context, analyst *domain.Actor, worklist []domain.WorkItem, l log.FieldLogger) AnalystReport {
	al := l.WithField("analyst", analyst.Username)
	rep := AnalystReport{Analyst: analyst.Username, Worklist: len(worklist)}
	for _, part := range Partitions(shuffle(e.Rand, worklist), domain.Quotas) {
		ol := al.WithField("outcome", part.Outcome)
		or := OutcomeReport{Outcome: part.Outcome, Planned: len(part.Items) + part.Shortfall, Shortfall: part.Shortfall}
		if part.Shortfall > 0 {
			ol.WithFields(log.Fields{"wanted": or.Planned, "got": len(part.Items)}).Warn("worklist exhausted; outcome short")
		}
		for _, item := range part.Items {
			if err := e.drive(ctx, analyst, item, part.Outcome, ol.WithField("item", item.ID)); err != nil {
				or.Abandoned++
				e.Report.fail(ItemError{ItemID: item.ID, Outcome: part.Outcome, Err: err})
				continue
			}
			or.Completed++
		}
		rep.Outcomes = append(rep.Outcomes, or)
	}
	return rep
}

// drive runs the action sequence of outcome on one item. The first failing
// action abandons the item.
func (e Engine) drive(ctx context.Context, analyst *domain.Actor, item domain.WorkItem, outcome domain.Outcome, l log.FieldLogger) error {
	var err error
	switch outcome {
	case domain.OutcomeClosed:
		err = e.close(ctx, analyst, item, l)
	case domain.OutcomeResolved:
		err = e.resolve(ctx, analyst, item, l)
	case domain.OutcomeLocked:
		err = e.lock(ctx, analyst, item, l)
	case domain.OutcomeInProgressWithComments:
		err = e.discuss(ctx, analyst, item, l)
	case domain.OutcomeInProgressNoComments:
		l.Debug("left in progress")
		return nil
	default:
		err = errors.New("unknown outcome " + string(outcome))
	}
	if err != nil {
		var uc UnresolvedCreatorError
		if errors.As(err, &uc) {
			l.WithField("creator", uc.CreatorID).Error("creator unresolved; item abandoned")
		} else {
			l.WithError(err).Error("action failed; item abandoned")
		}
		return err
	}
	l.Debug("outcome reached")
	return nil
}

func (e Engine) close(ctx context.Context, analyst *domain.Actor, item domain.WorkItem, l log.FieldLogger) error {
	creator, ok := e.Registry.ByRemoteID(item.CreatorID)
	if !ok || !creator.Usable() {
		return UnresolvedCreatorError{ItemID: item.ID, CreatorID: item.CreatorID}
	}
	if err := e.resolve(ctx, analyst, item, l); err != nil {
		return err
	}
	if other := e.otherEmployee(item.CreatorID); other != nil {
		text := e.pick(content.ClosureComments, "Thanks, this works now.")
		if err := e.comment(ctx, other, item.ID, text, nil); err != nil {
			return err
		}
	} else {
		l.Warn("no other employee available; closure comment skipped")
	}
	return e.call(ctx, desk.OpAcceptResolution, creator, item.ID, func(ctx context.Context) error {
		return e.Desk.AcceptResolution(ctx, creator.Token, item.ID)
	})
}

func (e Engine) resolve(ctx context.Context, analyst *domain.Actor, item domain.WorkItem, l log.FieldLogger) error {
	if err := e.comment(ctx, analyst, item.ID, e.pick(content.AnalystComments, "Looking into it."), nil); err != nil {
		return err
	}
	text := e.pick(content.ResolutionComments, "Resolved.")
	attachments := e.maybeAttachment(ctx, resolveAttachmentOdds, l)
	return e.call(ctx, desk.OpResolve, analyst, item.ID, func(ctx context.Context) error {
		return e.Desk.Resolve(ctx, analyst.Token, item.ID, text, attachments)
	})
}

func (e Engine) lock(ctx context.Context, analyst *domain.Actor, item domain.WorkItem, l log.FieldLogger) error {
	if err := e.comment(ctx, analyst, item.ID, e.pick(content.AnalystComments, "Looking into it."), nil); err != nil {
		return err
	}
	reason := e.pick(content.LockReasons, "Locked.")
	return e.call(ctx, desk.OpLock, analyst, item.ID, func(ctx context.Context) error {
		return e.Desk.Lock(ctx, analyst.Token, item.ID, reason)
	})
}

func (e Engine) discuss(ctx context.Context, analyst *domain.Actor, item domain.WorkItem, l log.FieldLogger) error {
	first := e.pick(content.AnalystComments, "Looking into it.")
	if err := e.comment(ctx, analyst, item.ID, first, e.maybeAttachment(ctx, analystAttachmentOdds, l)); err != nil {
		return err
	}
	if err := pause(ctx, e.Pauses.Comment); err != nil {
		return err
	}
	if other := e.otherEmployee(item.CreatorID); other != nil {
		text := e.pick(content.UserComments, "Same here.")
		if err := e.comment(ctx, other, item.ID, text, e.maybeAttachment(ctx, employeeAttachmentOdds, l)); err != nil {
			return err
		}
		if err := pause(ctx, e.Pauses.Comment); err != nil {
			return err
		}
	} else {
		l.Warn("no other employee available; employee comment skipped")
	}
	return e.comment(ctx, analyst, item.ID, e.pick(content.AnalystFollowups, "Any news on your side?"), nil)
}

func (e Engine) comment(ctx context.Context, actor *domain.Actor, itemID domain.ID, text string, attachments []domain.Attachment) error {
	return e.call(ctx, desk.OpComment, actor, itemID, func(ctx context.Context) error {
		return e.Desk.Comment(ctx, actor.Token, itemID, text, attachments)
	})
}

// otherEmployee picks a random usable employee that is not the creator.
func (e Engine) otherEmployee(creatorID domain.ID) *domain.Actor {
	var candidates []*domain.Actor
	for _, a := range e.Registry.Usable(domain.RoleEmployee) {
		if a.RemoteID != creatorID {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[e.Rand.IntN(len(candidates))]
}
