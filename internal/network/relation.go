package network

import (
	"strings"

	"portal-service/internal/models"
)

// Role says which list shape a Relation was normalized from.
type Role string

const (
	RoleConnection Role = "connection"
	RoleRequester  Role = "requester"
	RoleSuggestion Role = "suggestion"
	RoleMember     Role = "member"
)

// Relation is the uniform record every tab list is mapped into at fetch time.
// RelationID is the connection id, request id or user id depending on Role.
type Relation struct {
	RelationID string      `json:"relation_id"`
	User       models.User `json:"user"`
	Role       Role        `json:"role"`
}

func FromConnections(conns []models.Connection) []Relation {
	out := make([]Relation, 0, len(conns))
	for _, c := range conns {
		out = append(out, Relation{RelationID: c.ID, User: c.User, Role: RoleConnection})
	}
	return out
}

func FromRequests(reqs []models.ConnectionRequest) []Relation {
	out := make([]Relation, 0, len(reqs))
	for _, r := range reqs {
		if r.Status != "" && r.Status != models.RequestStatusPending {
			continue
		}
		out = append(out, Relation{RelationID: r.ID, User: r.Requester, Role: RoleRequester})
	}
	return out
}

// FromUsers maps bare user lists, leaving out the viewer.
func FromUsers(users []models.User, role Role, viewerID string) []Relation {
	out := make([]Relation, 0, len(users))
	for _, u := range users {
		if u.ID == "" || (viewerID != "" && u.ID == viewerID) {
			continue
		}
		out = append(out, Relation{RelationID: u.ID, User: u, Role: role})
	}
	return out
}

// Filter returns the relations whose user name, company or headline contains query,
// ignoring case. The query is matched as typed, surrounding spaces included.
// An empty query keeps everything.
func Filter(relations []Relation, query string) []Relation {
	needle := strings.ToLower(query)
	out := make([]Relation, 0, len(relations))
	for _, rel := range relations {
		if needle == "" || matches(rel.User, needle) {
			out = append(out, rel)
		}
	}
	return out
}

func matches(u models.User, needle string) bool {
	for _, field := range []string{u.Name, u.Profile.Company, u.Profile.Headline} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
