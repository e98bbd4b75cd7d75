package engine

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"deskseed/internal/content"
	"deskseed/internal/desk"
	"deskseed/internal/domain"
	"deskseed/internal/journal"
	"deskseed/internal/registry"
)

const (
	// RequiredAnalysts is the size of the analyst roster a ticket run drives.
	RequiredAnalysts = 2
	// DefaultItems is how many work items a ticket run creates.
	DefaultItems = 200
	// DefaultTaxonomy is the size of the classification working set.
	DefaultTaxonomy = 20
)

// Attachment odds per action.
const (
	createAttachmentOdds   = 0.3
	resolveAttachmentOdds  = 0.5
	analystAttachmentOdds  = 0.3
	employeeAttachmentOdds = 0.2
	articleAttachmentOdds  = 0.6
	maxAttachmentsPerItem  = 3
)

// Desk is the remote service desk as seen by the engine.
type Desk interface {
	Login(ctx context.Context, username, password string) (desk.LoginResult, error)
	Users(ctx context.Context, token string) ([]domain.DirectoryUser, error)
	SetRole(ctx context.Context, token string, userID domain.ID, role domain.Role) error
	Taxonomy(ctx context.Context, token string) ([]domain.TaxonomyEntry, error)
	CreateItem(ctx context.Context, token string, item desk.NewItem) (domain.WorkItem, error)
	Comment(ctx context.Context, token string, itemID domain.ID, text string, attachments []domain.Attachment) error
	Assign(ctx context.Context, token string, itemID, assigneeID domain.ID) error
	Resolve(ctx context.Context, token string, itemID domain.ID, comment string, attachments []domain.Attachment) error
	AcceptResolution(ctx context.Context, token string, itemID domain.ID) error
	Lock(ctx context.Context, token string, itemID domain.ID, reason string) error
	CreateArticle(ctx context.Context, token string, article domain.Article, attachments []domain.Attachment) (domain.Article, error)
	PendingSurveys(ctx context.Context, token string) ([]domain.Survey, error)
	SurveyForItem(ctx context.Context, token string, itemID domain.ID) (domain.SurveyDetail, bool, error)
	CompleteSurvey(ctx context.Context, accessToken string, answers domain.SurveyAnswers) error
}

// AttachmentSource picks and reads attachment files. Sample picks and
// reads a single file in one step.
type AttachmentSource interface {
	Pick() (string, bool, error)
	Read(name string) (domain.Attachment, error)
	Sample() (domain.Attachment, bool, error)
}

// Recorder journals remote calls.
type Recorder interface {
	Append(ctx context.Context, c journal.Call) error
}

// Engine drives the simulated actors of one run against a Desk.
type Engine struct {
	Desk     Desk
	Registry *registry.Registry
	Content  content.Selector
	Attach   AttachmentSource
	Rand     Rand
	Journal  Recorder
	Log      log.FieldLogger
	Pauses   Pauses
	Report   *Report
	Now      func() time.Time
}

// New builds an engine with default pauses and an empty report.
func New(d Desk, reg *registry.Registry, corpus *content.Corpus, att AttachmentSource, r Rand) Engine {
	return Engine{
		Desk:     d,
		Registry: reg,
		Content:  content.NewSelector(corpus, r),
		Attach:   att,
		Rand:     r,
		Log:      log.StandardLogger(),
		Pauses:   DefaultPauses(),
		Report:   &Report{},
		Now:      time.Now,
	}
}

// RunOptions tune a ticket run. AdminAssigns issues assignments with the
// administrator's session instead of letting each analyst take their own items.
type RunOptions struct {
	Items        int
	Taxonomy     int
	AdminAssigns bool
}

func (o RunOptions) withDefaults() RunOptions {
	if o.Items <= 0 {
		o.Items = DefaultItems
	}
	if o.Taxonomy <= 0 {
		o.Taxonomy = DefaultTaxonomy
	}
	return o
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() log.FieldLogger {
	if e.Log == nil {
		return log.StandardLogger()
	}
	return e.Log
}

func (e Engine) phase(name string) log.FieldLogger {
	return e.log().WithField("phase", name)
}

// call runs one remote action and journals it.
func (e Engine) call(ctx context.Context, op string, actor *domain.Actor, itemID domain.ID, fn func(ctx context.Context) error) error {
	start := e.now()
	err := fn(ctx)
	if e.Journal != nil {
		c := journal.Call{Op: op, ItemID: itemID.String(), Err: err, Duration: e.now().Sub(start)}
		if actor != nil {
			c.Actor = actor.Username
		}
		if jerr := e.Journal.Append(ctx, c); jerr != nil {
			e.log().WithError(jerr).Warn("journal append failed")
		}
	}
	return err
}

// sampleAttachments picks up to n files and reads them concurrently. Files
// that cannot be picked or read are skipped with a warning.
func (e Engine) sampleAttachments(ctx context.Context, n int, l log.FieldLogger) []domain.Attachment {
	if e.Attach == nil || n <= 0 {
		return nil
	}
	var names []string
	for i := 0; i < n; i++ {
		name, ok, err := e.Attach.Pick()
		if err != nil {
			l.WithError(err).Warn("attachment listing failed")
			return nil
		}
		if !ok {
			l.Warn("no attachment file available")
			continue
		}
		names = append(names, name)
	}
	return readAll(ctx, e.Attach, names, l)
}

// maybeAttachment returns one attachment with probability p.
func (e Engine) maybeAttachment(ctx context.Context, p float64, l log.FieldLogger) []domain.Attachment {
	if e.Attach == nil || !chance(e.Rand, p) {
		return nil
	}
	a, ok, err := e.Attach.Sample()
	switch {
	case err != nil:
		l.WithError(err).Warn("attachment skipped")
		return nil
	case !ok:
		l.Warn("no attachment file available")
		return nil
	}
	return []domain.Attachment{a}
}

func (e Engine) pick(key, fallback string) string {
	return e.Content.PickOr(key, fallback)
}
