package desk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskseed/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL + "/api/")
	c.CorrelationID = "run-1"
	return c
}

func TestLoginReadsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "run-1", r.Header.Get(CorrelationHeader))
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "emp1@desk.local", body["username"])
		_, _ = io.WriteString(w, `{"token":"tok","id":42,"name":"Emp One","role":"Employee"}`)
	})
	res, err := c.Login(context.Background(), "emp1@desk.local", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, domain.ID("42"), res.ID)
	assert.Equal(t, "Emp One", res.Name)
}

func TestLoginFallsBackToTokenClaims(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		claimNameIdentifier: "u-7",
		claimRole:           "Analyst",
		"unique_name":       "Ana Lyst",
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": signed})
	})
	res, err := c.Login(context.Background(), "an@desk.local", "pw")
	require.NoError(t, err)
	assert.Equal(t, domain.ID("u-7"), res.ID)
	assert.Equal(t, "Analyst", res.Role)
	assert.Equal(t, "Ana Lyst", res.Name)
}

func TestLoginWithoutTokenFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := c.Login(context.Background(), "x", "y")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status     int
		body       string
		validation bool
		message    string
	}{
		{status: http.StatusBadRequest, body: `{"title":"Bad Request","errors":{"Title":["required"]}}`, validation: true, message: "Bad Request; Title: required"},
		{status: http.StatusConflict, body: `{"message":"already assigned"}`, validation: true, message: "already assigned"},
		{status: http.StatusUnprocessableEntity, body: `plain text`, validation: true, message: "plain text"},
		{status: http.StatusUnauthorized, body: ``},
		{status: http.StatusForbidden, body: `{"message":"nope"}`},
		{status: http.StatusInternalServerError, body: `boom`},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		})
		err := c.Lock(context.Background(), "tok", "9", "dup")
		require.Error(t, err)
		assert.Equal(t, tc.validation, IsValidation(err), "status %d", tc.status)
		assert.Equal(t, !tc.validation, IsTransport(err), "status %d", tc.status)
		assert.Equal(t, tc.status, StatusOf(err))
		if tc.validation {
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, OpLock, ve.Op)
			assert.Equal(t, tc.message, ve.Message)
		}
	}
}

func TestNetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(url)
	c.Timeout = time.Second
	err := c.Assign(context.Background(), "tok", "1", "2")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 0, StatusOf(err))
}

func TestCreateItemMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Tickets", r.URL.Path)
		assert.Equal(t, "Bearer emp-token", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Printer down", r.FormValue("Title"))
		assert.Equal(t, "desc", r.FormValue("Description"))
		assert.Equal(t, "3", r.FormValue("SubcategoryId"))
		files := r.MultipartForm.File["Attachments"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.txt", files[0].Filename)
		f, err := files[1].Open()
		require.NoError(t, err)
		b, _ := io.ReadAll(f)
		assert.Equal(t, "bee", string(b))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":101,"title":"Printer down","creatorId":"u-1","status":"Open"}`)
	})
	item, err := c.CreateItem(context.Background(), "emp-token", NewItem{
		Title:            "Printer down",
		Description:      "desc",
		ClassificationID: "3",
		Attachments:      []domain.Attachment{{Name: "a.txt", Content: []byte("a")}, {Name: "b.txt", Content: []byte("bee")}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ID("101"), item.ID)
	assert.Equal(t, domain.ID("u-1"), item.CreatorID)
}

func TestCreateArticleRepeatsKeywords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, []string{"vpn", "network"}, r.MultipartForm.Value["Keywords"])
		assert.Equal(t, "Connecting", r.FormValue("Topic"))
		_, _ = io.WriteString(w, `{"id":"kb-1","topic":"Connecting"}`)
	})
	a, err := c.CreateArticle(context.Background(), "tok", domain.Article{Topic: "Connecting", Content: "c", Keywords: []string{"vpn", "network"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ID("kb-1"), a.ID)
}

func TestSurveyEndpoints(t *testing.T) {
	var completeAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/Surveys":
			assert.Equal(t, "false", r.URL.Query().Get("IsCompleted"))
			assert.Equal(t, "50", r.URL.Query().Get("PageSize"))
			_, _ = io.WriteString(w, `{"items":[{"id":1,"ticketId":5,"isCompleted":false}]}`)
		case "/api/Surveys/ticket/5":
			_, _ = io.WriteString(w, `{"id":1,"ticketId":5,"accessGuidToken":"g-1"}`)
		case "/api/Surveys/ticket/6":
			w.WriteHeader(http.StatusNotFound)
		case "/api/Surveys/token/g-1/complete":
			completeAuth = r.Header.Get("Authorization")
			var ans domain.SurveyAnswers
			require.NoError(t, json.NewDecoder(r.Body).Decode(&ans))
			assert.Equal(t, 4, ans.AnalystRating)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()
	surveys, err := c.PendingSurveys(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, surveys, 1)
	assert.Equal(t, domain.ID("5"), surveys[0].TicketID)

	detail, found, err := c.SurveyForItem(ctx, "admin", "5")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "g-1", detail.AccessToken)

	_, found, err = c.SurveyForItem(ctx, "admin", "6")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.CompleteSurvey(ctx, "g-1", domain.SurveyAnswers{AnalystRating: 4}))
	assert.Empty(t, completeAuth)
}

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	status := http.StatusOK
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	c.Metrics = NewMetrics(reg)
	ctx := context.Background()
	require.NoError(t, c.AcceptResolution(ctx, "tok", "1"))
	status = http.StatusConflict
	require.Error(t, c.AcceptResolution(ctx, "tok", "1"))
	status = http.StatusBadGateway
	require.Error(t, c.AcceptResolution(ctx, "tok", "1"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.calls.WithLabelValues(OpAcceptResolution, OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.calls.WithLabelValues(OpAcceptResolution, OutcomeValidation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.calls.WithLabelValues(OpAcceptResolution, OutcomeTransport)))
}

func TestBaseURLTrailingSlashTrimmed(t *testing.T) {
	c := New("http://desk/api//")
	assert.Equal(t, "http://desk/api/Users", c.url("/Users"))
	assert.Equal(t, DefaultBaseURL, New("").BaseURL)
}
