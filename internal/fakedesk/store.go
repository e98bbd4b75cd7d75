package fakedesk

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"deskseed/internal/domain"
)

// Ticket statuses.
const (
	StatusOpen       = "Open"
	StatusInProgress = "InProgress"
	StatusResolved   = "Resolved"
	StatusClosed     = "Closed"
	StatusLocked     = "Locked"
)

var ErrNotFound = errors.New("not found")

// ForbiddenError reports a caller whose role or relation to the ticket does
// not allow the action.
type ForbiddenError struct {
	Action string
	Reason string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("%s forbidden: %s", e.Action, e.Reason)
}

// ConflictError reports an action not allowed in the current status.
type ConflictError struct {
	Action string
	Status string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("cannot %s: status is %s", e.Action, e.Status)
}

// InvalidError reports a rejected field.
type InvalidError struct {
	Field   string
	Message string
}

func (e InvalidError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type User struct {
	ID       string
	Email    string
	Name     string
	Role     domain.Role
	Password string
}

type Subcategory struct {
	ID     int
	Name   string
	Active bool
}

type Comment struct {
	AuthorID    string
	Text        string
	Attachments int
}

type Ticket struct {
	ID            int
	Title         string
	Description   string
	SubcategoryID int
	CreatorID     string
	AssigneeID    string
	Status        string
	Resolution    string
	LockReason    string
	Attachments   int
	Comments      []Comment
}

type Article struct {
	ID          int
	AuthorID    string
	Topic       string
	Content     string
	Keywords    []string
	Attachments int
}

type Survey struct {
	ID          int
	TicketID    int
	AccessToken string
	Completed   bool
	Answers     domain.SurveyAnswers
}

// Store is the in-memory state of the service desk. It is safe for
// concurrent use.
type Store struct {
	mu            sync.Mutex
	users         map[string]*User
	subcategories []Subcategory
	tickets       map[int]*Ticket
	articles      []Article
	surveys       []*Survey
	nextTicket    int
}

func NewStore() *Store {
	return &Store{
		users:   map[string]*User{},
		tickets: map[int]*Ticket{},
	}
}

// AddUser registers a user and returns it with its generated id.
func (s *Store) AddUser(email, name, password string, role domain.Role) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &User{ID: uuid.NewString(), Email: email, Name: name, Role: role, Password: password}
	s.users[u.ID] = u
	return *u
}

// AddSubcategory appends a catalog entry and returns its id.
func (s *Store) AddSubcategory(name string, active bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := len(s.subcategories) + 1
	s.subcategories = append(s.subcategories, Subcategory{ID: id, Name: name, Active: active})
	return id
}

// Authenticate returns the user owning email and password.
func (s *Store) Authenticate(email, password string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) && u.Password == password {
			return *u, true
		}
	}
	return User{}, false
}

func (s *Store) User(id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return *u, nil
}

// UserByEmail looks a user up by email, ignoring case.
func (s *Store) UserByEmail(email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return *u, nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

// Users lists the directory ordered by email.
func (s *Store) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (s *Store) SetRole(caller User, userID string, role domain.Role) error {
	if caller.Role != domain.RoleAdministrator {
		return ForbiddenError{Action: "set role", Reason: "administrator only"}
	}
	if !role.Valid() {
		return InvalidError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	u.Role = role
	return nil
}

func (s *Store) Subcategories() []Subcategory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Subcategory(nil), s.subcategories...)
}

// CreateTicket opens a ticket authored by caller.
func (s *Store) CreateTicket(caller User, title, description string, subcategoryID, attachments int) (Ticket, error) {
	if strings.TrimSpace(title) == "" {
		return Ticket{}, InvalidError{Field: "Title", Message: "is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if subcategoryID < 1 || subcategoryID > len(s.subcategories) || !s.subcategories[subcategoryID-1].Active {
		return Ticket{}, InvalidError{Field: "SubcategoryId", Message: fmt.Sprintf("%d is not an active subcategory", subcategoryID)}
	}
	s.nextTicket++
	t := &Ticket{
		ID:            s.nextTicket,
		Title:         title,
		Description:   description,
		SubcategoryID: subcategoryID,
		CreatorID:     caller.ID,
		Status:        StatusOpen,
		Attachments:   attachments,
	}
	s.tickets[t.ID] = t
	return *t, nil
}

func (s *Store) Ticket(id int) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	return cloneTicket(t), nil
}

// Tickets lists every ticket ordered by id.
func (s *Store) Tickets() []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneTicket(t *Ticket) Ticket {
	c := *t
	c.Comments = append([]Comment(nil), t.Comments...)
	return c
}

// mutate runs fn on ticket id under the store lock.
func (s *Store) mutate(id int, fn func(t *Ticket) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	return fn(t)
}

func finished(status string) bool {
	return status == StatusClosed || status == StatusLocked
}

func (s *Store) AddComment(caller User, ticketID int, text string, attachments int) error {
	if strings.TrimSpace(text) == "" {
		return InvalidError{Field: "Comment", Message: "is required"}
	}
	return s.mutate(ticketID, func(t *Ticket) error {
		if finished(t.Status) {
			return ConflictError{Action: "comment", Status: t.Status}
		}
		t.Comments = append(t.Comments, Comment{AuthorID: caller.ID, Text: text, Attachments: attachments})
		t.Attachments += attachments
		return nil
	})
}

// Assign hands the ticket to an analyst and starts work on it.
func (s *Store) Assign(caller User, ticketID int, assigneeID string) error {
	if caller.Role == domain.RoleEmployee {
		return ForbiddenError{Action: "assign", Reason: "employees cannot assign tickets"}
	}
	assignee, err := s.User(assigneeID)
	if err != nil {
		return InvalidError{Field: "assignedUserId", Message: "unknown user"}
	}
	if assignee.Role != domain.RoleAnalyst {
		return InvalidError{Field: "assignedUserId", Message: "assignee must be an analyst"}
	}
	if caller.Role == domain.RoleAnalyst && assignee.ID != caller.ID {
		return ForbiddenError{Action: "assign", Reason: "analysts may only assign tickets to themselves"}
	}
	return s.mutate(ticketID, func(t *Ticket) error {
		if t.Status != StatusOpen && t.Status != StatusInProgress {
			return ConflictError{Action: "assign", Status: t.Status}
		}
		t.AssigneeID = assignee.ID
		t.Status = StatusInProgress
		return nil
	})
}

func (s *Store) Resolve(caller User, ticketID int, comment string, attachments int) error {
	if strings.TrimSpace(comment) == "" {
		return InvalidError{Field: "ResolutionComment", Message: "is required"}
	}
	return s.mutate(ticketID, func(t *Ticket) error {
		if t.AssigneeID != caller.ID {
			return ForbiddenError{Action: "resolve", Reason: "only the assignee may resolve"}
		}
		if t.Status != StatusInProgress {
			return ConflictError{Action: "resolve", Status: t.Status}
		}
		t.Status = StatusResolved
		t.Resolution = comment
		t.Attachments += attachments
		return nil
	})
}

// AcceptResolution closes a resolved ticket and opens its survey.
func (s *Store) AcceptResolution(caller User, ticketID int) error {
	return s.mutate(ticketID, func(t *Ticket) error {
		if t.CreatorID != caller.ID {
			return ForbiddenError{Action: "accept resolution", Reason: "only the creator may accept"}
		}
		if t.Status != StatusResolved {
			return ConflictError{Action: "accept resolution", Status: t.Status}
		}
		t.Status = StatusClosed
		s.surveys = append(s.surveys, &Survey{
			ID:          len(s.surveys) + 1,
			TicketID:    t.ID,
			AccessToken: uuid.NewString(),
		})
		return nil
	})
}

func (s *Store) Lock(caller User, ticketID int, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return InvalidError{Field: "lockReason", Message: "is required"}
	}
	return s.mutate(ticketID, func(t *Ticket) error {
		if caller.Role != domain.RoleAdministrator && t.AssigneeID != caller.ID {
			return ForbiddenError{Action: "lock", Reason: "only the assignee or an administrator may lock"}
		}
		if finished(t.Status) {
			return ConflictError{Action: "lock", Status: t.Status}
		}
		t.Status = StatusLocked
		t.LockReason = reason
		return nil
	})
}

func (s *Store) CreateArticle(caller User, topic, content string, keywords []string, attachments int) (Article, error) {
	if caller.Role == domain.RoleEmployee {
		return Article{}, ForbiddenError{Action: "create article", Reason: "employees cannot publish articles"}
	}
	if strings.TrimSpace(topic) == "" {
		return Article{}, InvalidError{Field: "Topic", Message: "is required"}
	}
	if strings.TrimSpace(content) == "" {
		return Article{}, InvalidError{Field: "Content", Message: "is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := Article{
		ID:          len(s.articles) + 1,
		AuthorID:    caller.ID,
		Topic:       topic,
		Content:     content,
		Keywords:    append([]string(nil), keywords...),
		Attachments: attachments,
	}
	s.articles = append(s.articles, a)
	return a, nil
}

func (s *Store) Articles() []Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Article(nil), s.articles...)
}

// Surveys lists surveys filtered by completion, at most limit of them.
func (s *Store) Surveys(completed *bool, limit int) []Survey {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Survey
	for _, sv := range s.surveys {
		if completed != nil && sv.Completed != *completed {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, *sv)
	}
	return out
}

func (s *Store) SurveyForTicket(ticketID int) (Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sv := range s.surveys {
		if sv.TicketID == ticketID {
			return *sv, nil
		}
	}
	return Survey{}, fmt.Errorf("survey for ticket %d: %w", ticketID, ErrNotFound)
}

// CompleteSurvey records answers for the survey identified by its access token.
func (s *Store) CompleteSurvey(token string, answers domain.SurveyAnswers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sv := range s.surveys {
		if sv.AccessToken != token {
			continue
		}
		if sv.Completed {
			return ConflictError{Action: "complete survey", Status: "completed"}
		}
		sv.Completed = true
		sv.Answers = answers
		return nil
	}
	return fmt.Errorf("survey %s: %w", token, ErrNotFound)
}
