package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"deskseed/internal/desk"
	"deskseed/internal/domain"
)

// RunKnowledgeBase publishes the article corpus as an analyst. Only the
// first administrator and the first analyst are logged in, and only if they
// are not usable yet.
func (e Engine) RunKnowledgeBase(ctx context.Context) (*Report, error) {
	e.begin(FlowKB)
	l := e.phase("kb")
	l.Info("phase start")

	admin, err := e.ensureUsable(ctx, domain.RoleAdministrator, l)
	if err != nil {
		return e.Report, err
	}
	analyst, err := e.ensureUsable(ctx, domain.RoleAnalyst, l)
	if err != nil {
		return e.Report, err
	}
	l.WithFields(log.Fields{"admin": admin.Username, "analyst": analyst.Username}).Debug("actors ready")

	articles := e.Content.Articles()
	published := 0
	for i, a := range articles {
		if i > 0 {
			if err := pause(ctx, between(e.Rand, e.Pauses.ArticleMin, e.Pauses.ArticleMax)); err != nil {
				return e.Report, err
			}
		}
		al := l.WithField("topic", a.Topic)
		attachments := e.maybeAttachment(ctx, articleAttachmentOdds, al)
		var created domain.Article
		err := e.call(ctx, desk.OpCreateArticle, analyst, "", func(ctx context.Context) error {
			var err error
			created, err = e.Desk.CreateArticle(ctx, analyst.Token, a, attachments)
			return err
		})
		if err != nil {
			al.WithError(err).Error("article not created")
			e.Report.fail(err)
			continue
		}
		published++
		al.WithFields(log.Fields{"id": created.ID, "attachments": len(attachments)}).Debug("article created")
	}
	if e.Report != nil {
		e.Report.Articles += published
	}
	l.WithFields(log.Fields{"articles": published, "failed": len(articles) - published}).Info("phase done")
	return e.Report, nil
}

// ensureUsable returns the first usable actor with role, logging in the
// first configured one when none is usable yet.
func (e Engine) ensureUsable(ctx context.Context, role domain.Role, l log.FieldLogger) (*domain.Actor, error) {
	if a, ok := e.Registry.FirstUsable(role); ok {
		return a, nil
	}
	candidates := e.Registry.ByRole(role)
	if len(candidates) == 0 {
		return nil, fatalf(nil, "no %s configured", role)
	}
	a := candidates[0]
	if e.login(ctx, a, l) && a.RemoteID == "" {
		e.reconcileDirectory(ctx, l)
	}
	if !a.Usable() {
		return nil, fatalf(nil, "%s %s could not authenticate", role, a.Username)
	}
	return a, nil
}
