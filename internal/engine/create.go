package engine

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"deskseed/internal/content"
	"deskseed/internal/desk"
	"deskseed/internal/domain"
)

// CreateItems creates total work items. Iteration i is authored by
// employees[i mod len(employees)] and filed under taxonomy[i mod
// len(taxonomy)]. Failed creations are logged and skipped; they shorten the
// result but never the number of iterations.
func (e Engine) CreateItems(ctx context.Context, employees []*domain.Actor, taxonomy []domain.TaxonomyEntry, total int) []domain.WorkItem {
	l := e.phase("create")
	l.WithFields(log.Fields{"total": total, "employees": len(employees), "taxonomy": len(taxonomy)}).Info("phase start")
	if len(employees) == 0 || len(taxonomy) == 0 {
		l.Warn("nothing to create with")
		return nil
	}
	var items []domain.WorkItem
	for i := 0; i < total; i++ {
		if i > 0 {
			if err := pause(ctx, e.Pauses.Create); err != nil {
				l.WithError(err).Warn("creation interrupted")
				break
			}
		}
		creator := employees[i%len(employees)]
		class := taxonomy[i%len(taxonomy)]
		item, err := e.createOne(ctx, creator, class, l)
		if err != nil {
			e.Report.fail(err)
			continue
		}
		items = append(items, item)
	}
	if e.Report != nil {
		e.Report.Created += len(items)
	}
	l.WithFields(log.Fields{"created": len(items), "failed": total - len(items)}).Info("phase done")
	return items
}

func (e Engine) createOne(ctx context.Context, creator *domain.Actor, class domain.TaxonomyEntry, l log.FieldLogger) (domain.WorkItem, error) {
	il := l.WithFields(log.Fields{"actor": creator.Username, "classification": class.Name})
	title := e.pick(content.Titles, "Support request")
	description, err := e.Content.Description(creator.DisplayName())
	if err != nil {
		description = title
	}
	var attachments []domain.Attachment
	if chance(e.Rand, createAttachmentOdds) {
		attachments = e.sampleAttachments(ctx, 1+e.Rand.IntN(maxAttachmentsPerItem), il)
	}
	req := desk.NewItem{
		Title:            title,
		Description:      description,
		ClassificationID: class.ID,
		Attachments:      attachments,
	}
	var item domain.WorkItem
	err = e.call(ctx, desk.OpCreateItem, creator, "", func(ctx context.Context) error {
		var err error
		item, err = e.Desk.CreateItem(ctx, creator.Token, req)
		return err
	})
	if err != nil {
		il.WithError(err).Error("create failed")
		return domain.WorkItem{}, err
	}
	if item.CreatorID == "" {
		item.CreatorID = creator.RemoteID
	}
	if item.Title == "" {
		item.Title = title
	}
	if item.ClassificationID == "" {
		item.ClassificationID = class.ID
	}
	il.WithFields(log.Fields{"item": item.ID, "attachments": len(attachments)}).Debug("item created")
	return item, nil
}

// readAll reads the named attachments concurrently. Read failures drop the
// file with a warning; the order of names is kept.
func readAll(ctx context.Context, src AttachmentSource, names []string, l log.FieldLogger) []domain.Attachment {
	if len(names) == 0 {
		return nil
	}
	read := make([]*domain.Attachment, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := src.Read(name)
			if err != nil {
				l.WithError(err).WithField("file", name).Warn("attachment skipped")
				return nil
			}
			read[i] = &a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil
	}
	var out []domain.Attachment
	for _, a := range read {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}
