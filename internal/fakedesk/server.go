package fakedesk

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"deskseed/internal/domain"
)

// DefaultBasePath prefixes every route.
const DefaultBasePath = "/api"

// Config for the sandbox desk handler.
type Config struct {
	Store    *Store
	BasePath string
	Auth     AuthConfig
	// Fail is consulted with the operation id before each call; a non-zero
	// status fails the call with that status.
	Fail func(op string) int
	Log  log.FieldLogger
	Now  func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Config) logger() log.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return log.StandardLogger()
}

// apiError is the error body of every failed call.
type apiError struct {
	Title   string              `json:"title"`
	Status  int                 `json:"status"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (e *apiError) GetStatus() int { return e.Status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string, fields map[string][]string) huma.StatusError {
	return &apiError{
		Title:   http.StatusText(status),
		Status:  status,
		Message: message,
		Errors:  fields,
	}
}

// New returns an HTTP handler exposing the service desk API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("fakedesk: store is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg, fieldErrors(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg, fieldErrors(errs))
	}

	router := chi.NewRouter()
	router.Use(requestLogger(cfg.logger()))
	router.Use(newAuthMiddleware(cfg.Auth, cfg.Store))
	hcfg := huma.DefaultConfig("Service Desk Sandbox", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	if cfg.Fail != nil {
		api.UseMiddleware(func(ctx huma.Context, next func(huma.Context)) {
			if status := cfg.Fail(ctx.Operation().OperationID); status != 0 {
				_ = huma.WriteErr(api, ctx, status, "injected failure")
				return
			}
			next(ctx)
		})
	}
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg)
	registerUsers(group, cfg.Store)
	registerSubcategories(group, cfg.Store)
	registerTickets(group, cfg.Store)
	registerKnowledgeBase(group, cfg.Store)
	registerSurveys(group, cfg.Store)

	return router, nil
}

func fieldErrors(errs []error) map[string][]string {
	if len(errs) == 0 {
		return nil
	}
	out := map[string][]string{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var d huma.ErrorDetailer
		if errors.As(err, &d) {
			detail := d.ErrorDetail()
			key := strings.TrimPrefix(detail.Location, "body.")
			out[key] = append(out[key], detail.Message)
			continue
		}
		out[""] = append(out[""], err.Error())
	}
	return out
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, err.Error(), nil)
	}
	var ce ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, err.Error(), nil)
	}
	var ie InvalidError
	if errors.As(err, &ie) {
		return newAPIError(http.StatusBadRequest, "validation failed", map[string][]string{ie.Field: {ie.Message}})
	}
	if errors.Is(err, ErrNotFound) {
		return newAPIError(http.StatusNotFound, err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal error", nil)
}

func requestLogger(l log.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			l.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"duration": time.Since(start),
			}).Debug("sandbox request")
		})
	}
}

func formValue(f *multipart.Form, key string) string {
	if v := f.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func fileCount(f *multipart.Form) int {
	return len(f.File["Attachments"])
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAuth(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/Auth/login",
		Summary:     "Exchange credentials for a session token",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		u, ok := cfg.Store.Authenticate(input.Body.Username, input.Body.Password)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "invalid username or password", nil)
		}
		token, err := signToken(cfg.Auth.JWTSecret, u, cfg.now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, err.Error(), nil)
		}
		resp := LoginResponse{Token: token}
		if !cfg.Auth.HideIdentity {
			resp.ID = u.ID
			resp.Name = u.Name
			resp.Role = string(u.Role)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerUsers(api huma.API, store *Store) {
	huma.Register(api, huma.Operation{
		OperationID: "directory",
		Method:      http.MethodGet,
		Path:        "/Users",
		Summary:     "List users",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if u.Role != domain.RoleAdministrator {
			return nil, handleError(ForbiddenError{Action: "list users", Reason: "administrator only"})
		}
		users := store.Users()
		out := make([]UserResponse, 0, len(users))
		for _, du := range users {
			out = append(out, userResponse(du))
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "setRole",
		Method:        http.MethodPut,
		Path:          "/Users/{id}/role",
		Summary:       "Change a user's role",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body SetRoleRequest `json:"body"`
	}) (*struct{}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := store.SetRole(u, input.ID, domain.Role(input.Body.Role)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerSubcategories(api huma.API, store *Store) {
	huma.Register(api, huma.Operation{
		OperationID: "getTaxonomy",
		Method:      http.MethodGet,
		Path:        "/Subcategories",
		Summary:     "List subcategories",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []SubcategoryResponse `json:"body"`
	}, error) {
		if _, authErr := caller(ctx); authErr != nil {
			return nil, authErr
		}
		subs := store.Subcategories()
		out := make([]SubcategoryResponse, 0, len(subs))
		for _, s := range subs {
			out = append(out, SubcategoryResponse{ID: s.ID, Name: s.Name, IsActive: s.Active})
		}
		return &struct {
			Body []SubcategoryResponse `json:"body"`
		}{Body: out}, nil
	})
}

type ticketPath struct {
	ID int `path:"id"`
}

func registerTickets(api huma.API, store *Store) {
	huma.Register(api, huma.Operation{
		OperationID:   "createItem",
		Method:        http.MethodPost,
		Path:          "/Tickets",
		Summary:       "Open a ticket",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		RawBody multipart.Form
	}) (*struct {
		Body TicketResponse `json:"body"`
	}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := &input.RawBody
		sub, err := strconv.Atoi(formValue(f, "SubcategoryId"))
		if err != nil {
			return nil, handleError(InvalidError{Field: "SubcategoryId", Message: "must be a number"})
		}
		t, err := store.CreateTicket(u, formValue(f, "Title"), formValue(f, "Description"), sub, fileCount(f))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TicketResponse `json:"body"`
		}{Body: ticketResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getTicket",
		Method:      http.MethodGet,
		Path:        "/Tickets/{id}",
		Summary:     "Get a ticket",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *ticketPath) (*struct {
		Body TicketResponse `json:"body"`
	}, error) {
		if _, authErr := caller(ctx); authErr != nil {
			return nil, authErr
		}
		t, err := store.Ticket(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TicketResponse `json:"body"`
		}{Body: ticketResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "comment",
		Method:        http.MethodPost,
		Path:          "/Tickets/{id}/comments",
		Summary:       "Comment on a ticket",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID      int `path:"id"`
		RawBody multipart.Form
	}) (*struct{}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := &input.RawBody
		return nil, handleError(store.AddComment(u, input.ID, formValue(f, "Comment"), fileCount(f)))
	})

	huma.Register(api, huma.Operation{
		OperationID:   "assign",
		Method:        http.MethodPut,
		Path:          "/Tickets/{id}/assign",
		Summary:       "Assign a ticket to an analyst",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   int           `path:"id"`
		Body AssignRequest `json:"body"`
	}) (*struct{}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return nil, handleError(store.Assign(u, input.ID, input.Body.AssignedUserID))
	})

	huma.Register(api, huma.Operation{
		OperationID:   "resolve",
		Method:        http.MethodPut,
		Path:          "/Tickets/{id}/resolve",
		Summary:       "Resolve a ticket",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID      int `path:"id"`
		RawBody multipart.Form
	}) (*struct{}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := &input.RawBody
		return nil, handleError(store.Resolve(u, input.ID, formValue(f, "ResolutionComment"), fileCount(f)))
	})

	huma.Register(api, huma.Operation{
		OperationID:   "acceptResolution",
		Method:        http.MethodPut,
		Path:          "/Tickets/{id}/accept-resolution",
		Summary:       "Accept a resolution and close the ticket",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *ticketPath) (*struct{}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return nil, handleError(store.AcceptResolution(u, input.ID))
	})

	huma.Register(api, huma.Operation{
		OperationID:   "lock",
		Method:        http.MethodPost,
		Path:          "/Tickets/{id}/lock",
		Summary:       "Lock a ticket",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   int         `path:"id"`
		Body LockRequest `json:"body"`
	}) (*struct{}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return nil, handleError(store.Lock(u, input.ID, input.Body.LockReason))
	})
}

func registerKnowledgeBase(api huma.API, store *Store) {
	huma.Register(api, huma.Operation{
		OperationID:   "createArticle",
		Method:        http.MethodPost,
		Path:          "/KnowledgeBase/articles",
		Summary:       "Publish a knowledge base article",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		RawBody multipart.Form
	}) (*struct {
		Body ArticleResponse `json:"body"`
	}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := &input.RawBody
		a, err := store.CreateArticle(u, formValue(f, "Topic"), formValue(f, "Content"), f.Value["Keywords"], fileCount(f))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ArticleResponse `json:"body"`
		}{Body: articleResponse(a)}, nil
	})
}

func registerSurveys(api huma.API, store *Store) {
	huma.Register(api, huma.Operation{
		OperationID: "pendingSurveys",
		Method:      http.MethodGet,
		Path:        "/Surveys",
		Summary:     "List surveys",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		IsCompleted string `query:"IsCompleted"`
		PageSize    int    `query:"PageSize" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body SurveyPage `json:"body"`
	}, error) {
		u, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if u.Role != domain.RoleAdministrator {
			return nil, handleError(ForbiddenError{Action: "list surveys", Reason: "administrator only"})
		}
		completed, err := parseBool(input.IsCompleted)
		if err != nil {
			return nil, handleError(InvalidError{Field: "IsCompleted", Message: "must be true or false"})
		}
		all := store.Surveys(completed, 0)
		page := all
		if len(page) > input.PageSize {
			page = page[:input.PageSize]
		}
		items := make([]SurveyResponse, 0, len(page))
		for _, s := range page {
			items = append(items, surveyResponse(s))
		}
		return &struct {
			Body SurveyPage `json:"body"`
		}{Body: SurveyPage{Items: items, TotalCount: len(all)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "surveyForTicket",
		Method:      http.MethodGet,
		Path:        "/Surveys/ticket/{ticketId}",
		Summary:     "Get the survey of a ticket",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TicketID int `path:"ticketId"`
	}) (*struct {
		Body SurveyDetailResponse `json:"body"`
	}, error) {
		if _, authErr := caller(ctx); authErr != nil {
			return nil, authErr
		}
		s, err := store.SurveyForTicket(input.TicketID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SurveyDetailResponse `json:"body"`
		}{Body: SurveyDetailResponse{ID: s.ID, TicketID: s.TicketID, AccessGUIDToken: s.AccessToken, IsCompleted: s.Completed}}, nil
	})

	// addressed by the survey access token; no session required
	huma.Register(api, huma.Operation{
		OperationID:   "completeSurvey",
		Method:        http.MethodPost,
		Path:          "/Surveys/token/{token}/complete",
		Summary:       "Submit survey answers",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Token string                `path:"token"`
		Body  CompleteSurveyRequest `json:"body"`
	}) (*struct{}, error) {
		return nil, handleError(store.CompleteSurvey(input.Token, input.Body.answers()))
	})
}
