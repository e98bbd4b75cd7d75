package desk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"deskseed/internal/domain"
)

const (
	DefaultBaseURL = "http://localhost:5154/api"
	DefaultTimeout = 30 * time.Second

	CorrelationHeader = "X-Correlation-Id"
)

// Operation names used in errors, logs, metrics and the run journal.
const (
	OpLogin            = "login"
	OpDirectory        = "directory"
	OpSetRole          = "setRole"
	OpTaxonomy         = "getTaxonomy"
	OpCreateItem       = "createItem"
	OpComment          = "comment"
	OpAssign           = "assign"
	OpResolve          = "resolve"
	OpAcceptResolution = "acceptResolution"
	OpLock             = "lock"
	OpCreateArticle    = "createArticle"
	OpPendingSurveys   = "pendingSurveys"
	OpSurveyForItem    = "surveyForTicket"
	OpCompleteSurvey   = "completeSurvey"
)

// Client is a service desk HTTP API client. Each call takes the session
// token of the actor performing it.
type Client struct {
	BaseURL       string
	HTTPClient    *http.Client
	Timeout       time.Duration
	CorrelationID string
	Metrics       *Metrics
	Log           log.FieldLogger
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		Timeout: DefaultTimeout,
	}
}

// LoginResult is the session issued to an actor.
type LoginResult struct {
	Token string    `json:"token"`
	ID    domain.ID `json:"id"`
	Name  string    `json:"name"`
	Role  string    `json:"role"`
}

// NewItem is the payload of a work item creation.
type NewItem struct {
	Title            string
	Description      string
	ClassificationID domain.ID
	Attachments      []domain.Attachment
}

// Login exchanges credentials for a session token. When the response body
// does not carry the actor's identity it is read from the token claims.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body := map[string]any{
		"username": username,
		"password": password,
	}
	var resp LoginResult
	if err := c.do(ctx, OpLogin, http.MethodPost, "Auth/login", "", body, &resp); err != nil {
		return LoginResult{}, err
	}
	if resp.Token == "" {
		return LoginResult{}, &TransportError{Op: OpLogin, Status: http.StatusOK, Err: errors.New("response has no token")}
	}
	if resp.ID == "" || resp.Role == "" || resp.Name == "" {
		id, err := IdentityFromToken(resp.Token)
		if err != nil {
			c.logger().WithError(err).WithField("actor", username).Debug("token claims unavailable")
		} else {
			if resp.ID == "" {
				resp.ID = domain.ID(id.ID)
			}
			if resp.Name == "" {
				resp.Name = id.Name
			}
			if resp.Role == "" {
				resp.Role = id.Role
			}
		}
	}
	return resp, nil
}

// Users lists the user directory.
func (c *Client) Users(ctx context.Context, token string) ([]domain.DirectoryUser, error) {
	var resp []domain.DirectoryUser
	err := c.do(ctx, OpDirectory, http.MethodGet, "Users", token, nil, &resp)
	return resp, err
}

// SetRole changes the role of a user.
func (c *Client) SetRole(ctx context.Context, token string, userID domain.ID, role domain.Role) error {
	endpoint := fmt.Sprintf("Users/%s/role", url.PathEscape(userID.String()))
	return c.do(ctx, OpSetRole, http.MethodPut, endpoint, token, map[string]any{"role": role}, nil)
}

// Taxonomy returns the full subcategory catalog.
func (c *Client) Taxonomy(ctx context.Context, token string) ([]domain.TaxonomyEntry, error) {
	var resp []domain.TaxonomyEntry
	err := c.do(ctx, OpTaxonomy, http.MethodGet, "Subcategories", token, nil, &resp)
	return resp, err
}

// CreateItem creates a ticket on behalf of the token holder.
func (c *Client) CreateItem(ctx context.Context, token string, item NewItem) (domain.WorkItem, error) {
	fields := []formField{
		{Name: "Title", Value: item.Title},
		{Name: "Description", Value: item.Description},
		{Name: "SubcategoryId", Value: item.ClassificationID.String()},
	}
	var resp domain.WorkItem
	err := c.doForm(ctx, OpCreateItem, http.MethodPost, "Tickets", token, fields, item.Attachments, &resp)
	return resp, err
}

// Comment adds a comment to a ticket.
func (c *Client) Comment(ctx context.Context, token string, itemID domain.ID, text string, attachments []domain.Attachment) error {
	fields := []formField{{Name: "Comment", Value: text}}
	return c.doForm(ctx, OpComment, http.MethodPost, c.ticketPath(itemID, "comments"), token, fields, attachments, nil)
}

// Assign sets the assignee of a ticket.
func (c *Client) Assign(ctx context.Context, token string, itemID, assigneeID domain.ID) error {
	body := map[string]any{"assignedUserId": assigneeID}
	return c.do(ctx, OpAssign, http.MethodPut, c.ticketPath(itemID, "assign"), token, body, nil)
}

// Resolve marks a ticket resolved with a resolution comment.
func (c *Client) Resolve(ctx context.Context, token string, itemID domain.ID, comment string, attachments []domain.Attachment) error {
	fields := []formField{{Name: "ResolutionComment", Value: comment}}
	return c.doForm(ctx, OpResolve, http.MethodPut, c.ticketPath(itemID, "resolve"), token, fields, attachments, nil)
}

// AcceptResolution closes a resolved ticket. Only its creator may accept.
func (c *Client) AcceptResolution(ctx context.Context, token string, itemID domain.ID) error {
	return c.do(ctx, OpAcceptResolution, http.MethodPut, c.ticketPath(itemID, "accept-resolution"), token, map[string]any{}, nil)
}

// Lock locks a ticket with a reason.
func (c *Client) Lock(ctx context.Context, token string, itemID domain.ID, reason string) error {
	body := map[string]any{"lockReason": reason}
	return c.do(ctx, OpLock, http.MethodPost, c.ticketPath(itemID, "lock"), token, body, nil)
}

// CreateArticle publishes a knowledge base article.
func (c *Client) CreateArticle(ctx context.Context, token string, article domain.Article, attachments []domain.Attachment) (domain.Article, error) {
	fields := []formField{
		{Name: "Topic", Value: article.Topic},
		{Name: "Content", Value: article.Content},
	}
	for _, kw := range article.Keywords {
		fields = append(fields, formField{Name: "Keywords", Value: kw})
	}
	var resp domain.Article
	err := c.doForm(ctx, OpCreateArticle, http.MethodPost, "KnowledgeBase/articles", token, fields, attachments, &resp)
	return resp, err
}

// PendingSurveys lists the first page of surveys not completed yet.
func (c *Client) PendingSurveys(ctx context.Context, token string) ([]domain.Survey, error) {
	var resp struct {
		Items []domain.Survey `json:"items"`
	}
	err := c.do(ctx, OpPendingSurveys, http.MethodGet, "Surveys?IsCompleted=false&PageSize=50", token, nil, &resp)
	return resp.Items, err
}

// SurveyForItem returns the survey of a ticket. found is false when the
// ticket has no survey.
func (c *Client) SurveyForItem(ctx context.Context, token string, itemID domain.ID) (detail domain.SurveyDetail, found bool, err error) {
	endpoint := fmt.Sprintf("Surveys/ticket/%s", url.PathEscape(itemID.String()))
	err = c.do(ctx, OpSurveyForItem, http.MethodGet, endpoint, token, nil, &detail)
	if StatusOf(err) == http.StatusNotFound {
		return domain.SurveyDetail{}, false, nil
	}
	if err != nil {
		return domain.SurveyDetail{}, false, err
	}
	return detail, true, nil
}

// CompleteSurvey submits survey answers. The endpoint is addressed by the
// survey access token and takes no bearer token.
func (c *Client) CompleteSurvey(ctx context.Context, accessToken string, answers domain.SurveyAnswers) error {
	endpoint := fmt.Sprintf("Surveys/token/%s/complete", url.PathEscape(accessToken))
	return c.do(ctx, OpCompleteSurvey, http.MethodPost, endpoint, "", answers, nil)
}

func (c *Client) do(ctx context.Context, op, method, endpoint, token string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), &buf)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(op, req, token, out)
}

func (c *Client) doForm(ctx context.Context, op, method, endpoint, token string, fields []formField, attachments []domain.Attachment, out any) error {
	buf, contentType, err := encodeMultipart(fields, attachments)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), buf)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.send(op, req, token, out)
}

func (c *Client) send(op string, req *http.Request, token string, out any) (err error) {
	start := time.Now()
	defer func() {
		took := time.Since(start)
		c.Metrics.record(op, took, err)
		entry := c.logger().WithFields(log.Fields{"op": op, "method": req.Method, "path": req.URL.Path, "took": took})
		if err != nil {
			entry.WithError(err).Debug("remote call failed")
		} else {
			entry.Debug("remote call")
		}
	}()

	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.CorrelationID != "" {
		req.Header.Set(CorrelationHeader, c.CorrelationID)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return classify(op, resp.StatusCode, b)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.HTTPClient = &http.Client{Timeout: timeout}
	}
	return c.HTTPClient
}

func (c *Client) logger() log.FieldLogger {
	if c.Log == nil {
		return log.StandardLogger()
	}
	return c.Log
}

func (c *Client) ticketPath(itemID domain.ID, action string) string {
	return fmt.Sprintf("Tickets/%s/%s", url.PathEscape(itemID.String()), action)
}

func (c *Client) url(endpoint string) string {
	return c.base() + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
