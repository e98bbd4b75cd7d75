package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"deskseed/internal/content"
	"deskseed/internal/desk"
	"deskseed/internal/domain"
)

// Survey ratings are drawn uniformly from [minRating, maxRating].
const (
	minRating = 3
	maxRating = 5
)

// RunSurveys completes the pending satisfaction surveys of closed tickets.
func (e Engine) RunSurveys(ctx context.Context) (*Report, error) {
	e.begin(FlowSurveys)
	if _, err := e.AuthenticateAll(ctx); err != nil {
		return e.Report, err
	}
	l := e.phase("surveys")
	admin, ok := e.Registry.FirstUsable(domain.RoleAdministrator)
	if !ok {
		return e.Report, fatalf(nil, "no usable administrator to list surveys")
	}
	var pending []domain.Survey
	err := e.call(ctx, desk.OpPendingSurveys, admin, "", func(ctx context.Context) error {
		var err error
		pending, err = e.Desk.PendingSurveys(ctx, admin.Token)
		return err
	})
	if err != nil {
		return e.Report, fatalf(err, "pending surveys unavailable")
	}
	l.WithField("pending", len(pending)).Info("phase start")

	completed, skipped := 0, 0
	for _, s := range pending {
		if ctx.Err() != nil {
			break
		}
		sl := l.WithFields(log.Fields{"survey": s.ID, "item": s.TicketID})
		if s.TicketID == "" {
			sl.Warn("survey has no ticket")
			skipped++
			continue
		}
		var detail domain.SurveyDetail
		var found bool
		err := e.call(ctx, desk.OpSurveyForItem, admin, s.TicketID, func(ctx context.Context) error {
			var err error
			detail, found, err = e.Desk.SurveyForItem(ctx, admin.Token, s.TicketID)
			return err
		})
		if err != nil {
			sl.WithError(err).Error("survey lookup failed")
			e.Report.fail(ItemError{ItemID: s.TicketID, Err: err})
			continue
		}
		if !found || detail.AccessToken == "" {
			sl.Warn("no survey access token for ticket")
			skipped++
			continue
		}
		answers := e.answers()
		err = e.call(ctx, desk.OpCompleteSurvey, nil, s.TicketID, func(ctx context.Context) error {
			return e.Desk.CompleteSurvey(ctx, detail.AccessToken, answers)
		})
		if err != nil {
			sl.WithError(err).Error("survey completion failed")
			e.Report.fail(ItemError{ItemID: s.TicketID, Err: err})
			continue
		}
		completed++
		sl.Debug("survey completed")
	}
	if e.Report != nil {
		e.Report.SurveysCompleted += completed
		e.Report.SurveysSkipped += skipped
	}
	l.WithFields(log.Fields{"completed": completed, "skipped": skipped}).Info("phase done")
	return e.Report, ctx.Err()
}

func (e Engine) answers() domain.SurveyAnswers {
	rating := func() int { return minRating + e.Rand.IntN(maxRating-minRating+1) }
	var pool []string
	pool = append(pool, e.Content.Corpus.Lists[content.ClosureComments]...)
	pool = append(pool, e.Content.Corpus.Lists[content.AnalystFollowups]...)
	comment := "Good service."
	if len(pool) > 0 {
		comment = pool[e.Rand.IntN(len(pool))]
	}
	return domain.SurveyAnswers{
		SatisfactionRating:  rating(),
		ResolutionRating:    rating(),
		AnalystRating:       rating(),
		PunctualityRating:   rating(),
		CommunicationRating: rating(),
		Comment:             comment,
	}
}
