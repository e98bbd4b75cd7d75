package fakedesk

import (
	"strconv"

	"deskseed/internal/domain"
)

// Request payloads

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SetRoleRequest struct {
	Role string `json:"role" enum:"Administrator,Analyst,Employee"`
}

type AssignRequest struct {
	AssignedUserID string `json:"assignedUserId"`
}

type LockRequest struct {
	LockReason string `json:"lockReason"`
}

type CompleteSurveyRequest struct {
	SatisfactionRating  int    `json:"satisfactionRating" minimum:"1" maximum:"5"`
	ResolutionRating    int    `json:"resolutionRating" minimum:"1" maximum:"5"`
	AnalystRating       int    `json:"analystRating" minimum:"1" maximum:"5"`
	PunctualityRating   int    `json:"punctualityRating" minimum:"1" maximum:"5"`
	CommunicationRating int    `json:"communicationRating" minimum:"1" maximum:"5"`
	Comment             string `json:"comment,omitempty"`
}

func (r CompleteSurveyRequest) answers() domain.SurveyAnswers {
	return domain.SurveyAnswers{
		SatisfactionRating:  r.SatisfactionRating,
		ResolutionRating:    r.ResolutionRating,
		AnalystRating:       r.AnalystRating,
		PunctualityRating:   r.PunctualityRating,
		CommunicationRating: r.CommunicationRating,
		Comment:             r.Comment,
	}
}

// Response payloads

type LoginResponse struct {
	Token string `json:"token"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type SubcategoryResponse struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

type TicketResponse struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	SubcategoryID   int    `json:"subcategoryId"`
	CreatorID       string `json:"creatorId"`
	AssignedUserID  string `json:"assignedUserId,omitempty"`
	Status          string `json:"status"`
	CommentCount    int    `json:"commentCount"`
	AttachmentCount int    `json:"attachmentCount"`
}

type ArticleResponse struct {
	ID       int      `json:"id"`
	Topic    string   `json:"topic"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
}

type SurveyResponse struct {
	ID          int  `json:"id"`
	TicketID    int  `json:"ticketId"`
	IsCompleted bool `json:"isCompleted"`
}

type SurveyDetailResponse struct {
	ID              int    `json:"id"`
	TicketID        int    `json:"ticketId"`
	AccessGUIDToken string `json:"accessGuidToken"`
	IsCompleted     bool   `json:"isCompleted"`
}

type SurveyPage struct {
	Items      []SurveyResponse `json:"items"`
	TotalCount int              `json:"totalCount"`
}

func userResponse(u User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)}
}

func ticketResponse(t Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		SubcategoryID:   t.SubcategoryID,
		CreatorID:       t.CreatorID,
		AssignedUserID:  t.AssigneeID,
		Status:          t.Status,
		CommentCount:    len(t.Comments),
		AttachmentCount: t.Attachments,
	}
}

func articleResponse(a Article) ArticleResponse {
	kw := a.Keywords
	if kw == nil {
		kw = []string{}
	}
	return ArticleResponse{ID: a.ID, Topic: a.Topic, Content: a.Content, Keywords: kw}
}

func surveyResponse(s Survey) SurveyResponse {
	return SurveyResponse{ID: s.ID, TicketID: s.TicketID, IsCompleted: s.Completed}
}

func parseBool(v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
