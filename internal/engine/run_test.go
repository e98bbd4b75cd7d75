package engine_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskseed/internal/content"
	"deskseed/internal/desk"
	"deskseed/internal/domain"
	"deskseed/internal/engine"
)

func TestRunTicketsScenario(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Analysts: 2, Employees: 5}, 20)
	rep, err := fx.Engine.RunTickets(context.Background(), engine.RunOptions{Items: 40, Taxonomy: 20})
	require.NoError(t, err)

	creates := fx.Desk.callsOf(desk.OpCreateItem)
	require.Len(t, creates, 40)
	creatorOf := map[domain.ID]domain.ID{}
	perEmployee := map[domain.ID]int{}
	for i, c := range creates {
		creatorOf[domain.ID(strconv.Itoa(i+1))] = c.ActorID
		perEmployee[c.ActorID]++
	}
	require.Len(t, perEmployee, 5)
	for id, n := range perEmployee {
		assert.Equal(t, 8, n, "employee %s", id)
	}

	assert.Equal(t, 20, rep.Taxonomy)
	assert.Equal(t, 40, rep.Created)
	assert.Equal(t, 20, rep.Assigned)
	assigned := map[domain.ID]bool{}
	perAnalyst := map[string]int{}
	bySession := map[domain.ID]int{}
	for _, c := range fx.Desk.callsOf(desk.OpAssign) {
		assert.False(t, assigned[c.Item])
		assigned[c.Item] = true
		perAnalyst[c.Arg]++
		bySession[c.ActorID]++
	}
	assert.Equal(t, map[string]int{"Analyst-1": 10, "Analyst-2": 10}, perAnalyst)
	assert.Equal(t, map[domain.ID]int{"Analyst-1": 10, "Analyst-2": 10}, bySession, "analysts assign items to themselves")

	require.Len(t, rep.Analysts, 2)
	for _, ar := range rep.Analysts {
		assert.Equal(t, 10, ar.Worklist)
		require.Len(t, ar.Outcomes, len(domain.Quotas))
		for k, o := range ar.Outcomes {
			assert.Equal(t, domain.Quotas[k].Outcome, o.Outcome)
			assert.Equal(t, 2, o.Planned)
			assert.Equal(t, 2, o.Completed, "%s %s", ar.Analyst, o.Outcome)
			assert.Zero(t, o.Abandoned)
			assert.Zero(t, o.Shortfall)
		}
	}

	accepts := fx.Desk.callsOf(desk.OpAcceptResolution)
	require.Len(t, accepts, 4)
	for _, c := range accepts {
		assert.Equal(t, creatorOf[c.Item], c.ActorID, "item %s accepted by its creator", c.Item)
		assert.NotContains(t, []domain.ID{"Analyst-1", "Analyst-2"}, c.ActorID)
	}
	assert.Len(t, fx.Desk.callsOf(desk.OpResolve), 8)
	assert.Len(t, fx.Desk.callsOf(desk.OpLock), 4)
	assert.NoError(t, rep.Err())
}

func TestRunTicketsAdminAssigns(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Analysts: 2, Employees: 5}, 20)
	rep, err := fx.Engine.RunTickets(context.Background(), engine.RunOptions{Items: 40, AdminAssigns: true})
	require.NoError(t, err)
	assert.Equal(t, 20, rep.Assigned)
	bySession := map[domain.ID]int{}
	for _, c := range fx.Desk.callsOf(desk.OpAssign) {
		bySession[c.ActorID]++
	}
	assert.Equal(t, map[domain.ID]int{"Administrator-1": 20}, bySession)
}

func TestRunTicketsFatalWhenAdminCannotLogIn(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Analysts: 2, Employees: 5}, 20)
	fx.Desk.failLogin[username(domain.RoleAdministrator, 1)] = true
	fx.Desk.failLogin[username(domain.RoleEmployee, 1)] = true
	fx.Desk.failLogin[username(domain.RoleEmployee, 2)] = true

	rep, err := fx.Engine.RunTickets(context.Background(), engine.RunOptions{Items: 40})
	require.Error(t, err)
	assert.True(t, engine.IsFatal(err))
	assert.Equal(t, 5, rep.UsableActors)
	assert.Empty(t, fx.Desk.callsOf(desk.OpTaxonomy))
	assert.Empty(t, fx.Desk.callsOf(desk.OpCreateItem))
}

func TestRunTicketsFatalWhenTooFewItems(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Analysts: 2, Employees: 5}, 20)
	fx.Desk.createLimit = 15

	rep, err := fx.Engine.RunTickets(context.Background(), engine.RunOptions{Items: 20})
	require.Error(t, err)
	assert.True(t, engine.IsFatal(err))
	assert.Equal(t, 15, rep.Created)
	assert.Len(t, fx.Desk.callsOf(desk.OpCreateItem), 20)
	assert.Empty(t, fx.Desk.callsOf(desk.OpAssign))
}

func TestRunTicketsNeedsTwoAnalysts(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Analysts: 2, Employees: 2}, 5)
	fx.Desk.failLogin[username(domain.RoleAnalyst, 2)] = true

	_, err := fx.Engine.RunTickets(context.Background(), engine.RunOptions{Items: 20})
	require.Error(t, err)
	assert.True(t, engine.IsFatal(err))
	assert.Empty(t, fx.Desk.callsOf(desk.OpCreateItem))
}

func TestRunKnowledgeBase(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Analysts: 2, Employees: 3}, 1)
	rep, err := fx.Engine.RunKnowledgeBase(context.Background())
	require.NoError(t, err)

	articles := content.Default().Articles
	assert.Equal(t, len(articles), rep.Articles)
	assert.Len(t, fx.Desk.callsOf(desk.OpLogin), 2)
	calls := fx.Desk.callsOf(desk.OpCreateArticle)
	require.Len(t, calls, len(articles))
	for i, c := range calls {
		assert.Equal(t, domain.ID("Analyst-1"), c.ActorID)
		assert.Equal(t, articles[i].Topic, c.Arg)
		assert.LessOrEqual(t, c.Files, 1)
	}
}

func TestRunKnowledgeBaseFatalWithoutAnalyst(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Analysts: 1}, 1)
	fx.Desk.failLogin[username(domain.RoleAnalyst, 1)] = true
	_, err := fx.Engine.RunKnowledgeBase(context.Background())
	require.Error(t, err)
	assert.True(t, engine.IsFatal(err))
	assert.Empty(t, fx.Desk.callsOf(desk.OpCreateArticle))
}

func TestRunSurveys(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Employees: 1}, 1)
	fx.Desk.surveys = []domain.Survey{
		{ID: "s1", TicketID: "10"},
		{ID: "s2", TicketID: "11"},
		{ID: "s3"},
	}
	fx.Desk.surveyToken["10"] = "guid-10"

	rep, err := fx.Engine.RunSurveys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SurveysCompleted)
	assert.Equal(t, 2, rep.SurveysSkipped)

	completes := fx.Desk.callsOf(desk.OpCompleteSurvey)
	require.Len(t, completes, 1)
	assert.Equal(t, "guid-10", completes[0].Arg)
	require.Len(t, fx.Desk.answers, 1)
	a := fx.Desk.answers[0]
	for _, r := range []int{a.SatisfactionRating, a.ResolutionRating, a.AnalystRating, a.PunctualityRating, a.CommunicationRating} {
		assert.GreaterOrEqual(t, r, 3)
		assert.LessOrEqual(t, r, 5)
	}
	assert.NotEmpty(t, a.Comment)
}

func TestRunSurveysFatalWithoutAdmin(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Employees: 1}, 1)
	fx.Desk.failLogin[username(domain.RoleAdministrator, 1)] = true
	_, err := fx.Engine.RunSurveys(context.Background())
	require.Error(t, err)
	assert.True(t, engine.IsFatal(err))
	assert.Empty(t, fx.Desk.callsOf(desk.OpPendingSurveys))
}

// certainRand makes every chance succeed and always picks the first element.
type certainRand struct{}

func (certainRand) IntN(int) int     { return 0 }
func (certainRand) Float64() float64 { return 0 }

func TestRunKnowledgeBaseAttachesOneSampledFile(t *testing.T) {
	fx := newFixture(t, population{Admins: 1, Analysts: 1}, 1)
	fx.Engine.Rand = certainRand{}
	_, err := fx.Engine.RunKnowledgeBase(context.Background())
	require.NoError(t, err)
	creates := fx.Desk.callsOf(desk.OpCreateArticle)
	require.NotEmpty(t, creates)
	for _, c := range creates {
		assert.Equal(t, 1, c.Files, "article %s", c.Arg)
	}

	fx = newFixture(t, population{Admins: 1, Analysts: 1}, 1)
	fx.Engine.Rand = certainRand{}
	fx.Engine.Attach = memAttach{}
	_, err = fx.Engine.RunKnowledgeBase(context.Background())
	require.NoError(t, err)
	for _, c := range fx.Desk.callsOf(desk.OpCreateArticle) {
		assert.Zero(t, c.Files)
	}
	warned := false
	for _, e := range fx.Logs.AllEntries() {
		warned = warned || e.Message == "no attachment file available"
	}
	assert.True(t, warned)
}
