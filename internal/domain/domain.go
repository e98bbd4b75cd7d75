package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the service desk role an actor plays.
type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleAnalyst       Role = "Analyst"
	RoleEmployee      Role = "Employee"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleAnalyst, RoleEmployee:
		return true
	}
	return false
}

// ID is an opaque remote identifier. The service desk emits numeric ids for
// some entities and string ids for others, so both decode into ID.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Actor is a simulated user with credentials and, once authenticated, a
// session token and remote identity.
type Actor struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"password"`
	Role     Role   `json:"role" yaml:"role"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	RemoteID ID     `json:"remote_id,omitempty" yaml:"-"`
	Token    string `json:"-" yaml:"-"`
}

// Usable reports whether both the remote identity and the session token are known.
func (a *Actor) Usable() bool {
	return a != nil && a.RemoteID != "" && a.Token != ""
}

// Clear forgets the session token and remote identity.
func (a *Actor) Clear() {
	a.RemoteID = ""
	a.Token = ""
}

// DisplayName prefers the directory name and falls back to the username.
func (a *Actor) DisplayName() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.Username
}

type TaxonomyEntry struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"isActive"`
}

// WorkItem is a ticket created by the seeder.
type WorkItem struct {
	ID               ID     `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	ClassificationID ID     `json:"subcategoryId,omitempty"`
	CreatorID        ID     `json:"creatorId"`
	State            string `json:"status,omitempty"`
}

// Assignment records which analyst took an item and whose session issued
// the assign call.
type Assignment struct {
	WorkItemID      ID
	AnalystUsername string
	AssignedBy      string
}

type Attachment struct {
	Name    string
	Content []byte
}

// DirectoryUser is a user as listed by the remote directory.
type DirectoryUser struct {
	ID    ID     `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

type Article struct {
	ID       ID       `json:"id"`
	Topic    string   `json:"topic"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords,omitempty"`
}

type Survey struct {
	ID        ID   `json:"id"`
	TicketID  ID   `json:"ticketId"`
	Completed bool `json:"isCompleted"`
}

type SurveyDetail struct {
	ID          ID     `json:"id"`
	TicketID    ID     `json:"ticketId"`
	AccessToken string `json:"accessGuidToken"`
}

// SurveyAnswers is the payload of a survey completion.
type SurveyAnswers struct {
	SatisfactionRating  int    `json:"satisfactionRating"`
	ResolutionRating    int    `json:"resolutionRating"`
	AnalystRating       int    `json:"analystRating"`
	PunctualityRating   int    `json:"punctualityRating"`
	CommunicationRating int    `json:"communicationRating"`
	Comment             string `json:"comment"`
}
