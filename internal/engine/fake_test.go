package engine_test

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"deskseed/internal/content"
	"deskseed/internal/desk"
	"deskseed/internal/domain"
	"deskseed/internal/engine"
	"deskseed/internal/registry"
)

type fakeUser struct {
	Password string
	ID       domain.ID
	Role     domain.Role
	Name     string
}

type call struct {
	Op      string
	ActorID domain.ID
	Item    domain.ID
	Arg     string
	Files   int
}

// fakeDesk is an in-process Desk keeping a log of every call.
type fakeDesk struct {
	mu          sync.Mutex
	users       map[string]fakeUser
	taxonomy    []domain.TaxonomyEntry
	failLogin   map[string]bool
	hideIDs     bool
	createLimit int
	failOps     map[string]bool
	surveys     []domain.Survey
	surveyToken map[domain.ID]string

	created int
	calls   []call
	answers []domain.SurveyAnswers
}

func newFakeDesk() *fakeDesk {
	return &fakeDesk{
		users:       map[string]fakeUser{},
		failLogin:   map[string]bool{},
		failOps:     map[string]bool{},
		surveyToken: map[domain.ID]string{},
	}
}

func (f *fakeDesk) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeDesk) callsOf(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeDesk) actorOf(token string) domain.ID {
	for _, u := range f.users {
		if "tok-"+string(u.ID) == token {
			return u.ID
		}
	}
	return ""
}

func (f *fakeDesk) failing(op string) error {
	if f.failOps[op] {
		return &desk.TransportError{Op: op, Status: http.StatusInternalServerError, Err: fmt.Errorf("injected")}
	}
	return nil
}

func (f *fakeDesk) Login(_ context.Context, username, password string) (desk.LoginResult, error) {
	f.record(call{Op: desk.OpLogin, Arg: username})
	u, ok := f.users[username]
	if !ok || f.failLogin[username] || u.Password != password {
		return desk.LoginResult{}, &desk.TransportError{Op: desk.OpLogin, Status: http.StatusUnauthorized, Err: fmt.Errorf("bad credentials")}
	}
	res := desk.LoginResult{Token: "tok-" + string(u.ID), Role: string(u.Role)}
	if !f.hideIDs {
		res.ID = u.ID
		res.Name = u.Name
	}
	return res, nil
}

func (f *fakeDesk) Users(_ context.Context, token string) ([]domain.DirectoryUser, error) {
	f.record(call{Op: desk.OpDirectory, ActorID: f.actorOf(token)})
	if err := f.failing(desk.OpDirectory); err != nil {
		return nil, err
	}
	var out []domain.DirectoryUser
	for email, u := range f.users {
		out = append(out, domain.DirectoryUser{ID: u.ID, Email: email, Name: u.Name, Role: u.Role})
	}
	return out, nil
}

func (f *fakeDesk) SetRole(_ context.Context, token string, userID domain.ID, role domain.Role) error {
	f.record(call{Op: desk.OpSetRole, ActorID: f.actorOf(token), Item: userID, Arg: string(role)})
	return f.failing(desk.OpSetRole)
}

func (f *fakeDesk) Taxonomy(_ context.Context, token string) ([]domain.TaxonomyEntry, error) {
	f.record(call{Op: desk.OpTaxonomy, ActorID: f.actorOf(token)})
	if err := f.failing(desk.OpTaxonomy); err != nil {
		return nil, err
	}
	return f.taxonomy, nil
}

func (f *fakeDesk) CreateItem(_ context.Context, token string, item desk.NewItem) (domain.WorkItem, error) {
	actor := f.actorOf(token)
	f.record(call{Op: desk.OpCreateItem, ActorID: actor, Arg: string(item.ClassificationID), Files: len(item.Attachments)})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createLimit > 0 && f.created >= f.createLimit {
		return domain.WorkItem{}, &desk.ValidationError{Op: desk.OpCreateItem, Status: http.StatusBadRequest, Message: "quota"}
	}
	f.created++
	return domain.WorkItem{ID: domain.ID(strconv.Itoa(f.created)), Title: item.Title, CreatorID: actor}, nil
}

func (f *fakeDesk) Comment(_ context.Context, token string, itemID domain.ID, text string, attachments []domain.Attachment) error {
	f.record(call{Op: desk.OpComment, ActorID: f.actorOf(token), Item: itemID, Arg: text, Files: len(attachments)})
	return f.failing(desk.OpComment)
}

func (f *fakeDesk) Assign(_ context.Context, token string, itemID, assigneeID domain.ID) error {
	f.record(call{Op: desk.OpAssign, ActorID: f.actorOf(token), Item: itemID, Arg: string(assigneeID)})
	return f.failing(desk.OpAssign)
}

func (f *fakeDesk) Resolve(_ context.Context, token string, itemID domain.ID, comment string, attachments []domain.Attachment) error {
	f.record(call{Op: desk.OpResolve, ActorID: f.actorOf(token), Item: itemID, Arg: comment, Files: len(attachments)})
	return f.failing(desk.OpResolve)
}

func (f *fakeDesk) AcceptResolution(_ context.Context, token string, itemID domain.ID) error {
	f.record(call{Op: desk.OpAcceptResolution, ActorID: f.actorOf(token), Item: itemID})
	return f.failing(desk.OpAcceptResolution)
}

func (f *fakeDesk) Lock(_ context.Context, token string, itemID domain.ID, reason string) error {
	f.record(call{Op: desk.OpLock, ActorID: f.actorOf(token), Item: itemID, Arg: reason})
	return f.failing(desk.OpLock)
}

func (f *fakeDesk) CreateArticle(_ context.Context, token string, article domain.Article, attachments []domain.Attachment) (domain.Article, error) {
	f.record(call{Op: desk.OpCreateArticle, ActorID: f.actorOf(token), Arg: article.Topic, Files: len(attachments)})
	if err := f.failing(desk.OpCreateArticle); err != nil {
		return domain.Article{}, err
	}
	article.ID = "kb-" + domain.ID(article.Topic)
	return article, nil
}

func (f *fakeDesk) PendingSurveys(_ context.Context, token string) ([]domain.Survey, error) {
	f.record(call{Op: desk.OpPendingSurveys, ActorID: f.actorOf(token)})
	if err := f.failing(desk.OpPendingSurveys); err != nil {
		return nil, err
	}
	return f.surveys, nil
}

func (f *fakeDesk) SurveyForItem(_ context.Context, token string, itemID domain.ID) (domain.SurveyDetail, bool, error) {
	f.record(call{Op: desk.OpSurveyForItem, ActorID: f.actorOf(token), Item: itemID})
	tok, ok := f.surveyToken[itemID]
	if !ok {
		return domain.SurveyDetail{}, false, nil
	}
	return domain.SurveyDetail{TicketID: itemID, AccessToken: tok}, true, nil
}

func (f *fakeDesk) CompleteSurvey(_ context.Context, accessToken string, answers domain.SurveyAnswers) error {
	f.record(call{Op: desk.OpCompleteSurvey, Arg: accessToken})
	f.mu.Lock()
	f.answers = append(f.answers, answers)
	f.mu.Unlock()
	return f.failing(desk.OpCompleteSurvey)
}

// memAttach serves attachments from memory.
type memAttach struct {
	files map[string][]byte
	order []string
}

func (m memAttach) Pick() (string, bool, error) {
	if len(m.order) == 0 {
		return "", false, nil
	}
	return m.order[0], true, nil
}

func (m memAttach) Read(name string) (domain.Attachment, error) {
	b, ok := m.files[name]
	if !ok {
		return domain.Attachment{}, fmt.Errorf("%s: not found", name)
	}
	return domain.Attachment{Name: name, Content: b}, nil
}

func (m memAttach) Sample() (domain.Attachment, bool, error) {
	name, ok, _ := m.Pick()
	if !ok {
		return domain.Attachment{}, false, nil
	}
	a, err := m.Read(name)
	return a, err == nil, err
}

// population describes the actors of a fixture.
type population struct {
	Admins    int
	Analysts  int
	Employees int
}

type fixture struct {
	Desk     *fakeDesk
	Registry *registry.Registry
	Engine   engine.Engine
	Logs     *test.Hook
}

func username(role domain.Role, i int) string {
	switch role {
	case domain.RoleAdministrator:
		return fmt.Sprintf("admin%d@desk.local", i)
	case domain.RoleAnalyst:
		return fmt.Sprintf("analyst%d@desk.local", i)
	}
	return fmt.Sprintf("employee%d@desk.local", i)
}

func newFixture(t *testing.T, pop population, taxonomy int) fixture {
	t.Helper()
	d := newFakeDesk()
	var actors []domain.Actor
	add := func(role domain.Role, n int) {
		for i := 1; i <= n; i++ {
			name := username(role, i)
			id := domain.ID(fmt.Sprintf("%s-%d", role, i))
			d.users[name] = fakeUser{Password: "pw", ID: id, Role: role, Name: fmt.Sprintf("%s %d", role, i)}
			actors = append(actors, domain.Actor{Username: name, Password: "pw", Role: role})
		}
	}
	add(domain.RoleAdministrator, pop.Admins)
	add(domain.RoleAnalyst, pop.Analysts)
	add(domain.RoleEmployee, pop.Employees)
	for i := 1; i <= taxonomy; i++ {
		d.taxonomy = append(d.taxonomy, domain.TaxonomyEntry{ID: domain.ID(strconv.Itoa(i)), Name: fmt.Sprintf("sub %d", i), Active: true})
	}
	reg, err := registry.New(actors)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	r, _ := engine.NewRand(42)
	eng := engine.New(d, reg, content.Default(), memAttach{
		files: map[string][]byte{"log.txt": []byte("log")},
		order: []string{"log.txt"},
	}, r)
	eng.Log = logger
	eng.Pauses = engine.Pauses{}
	return fixture{Desk: d, Registry: reg, Engine: eng, Logs: hook}
}
