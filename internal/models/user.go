package models

type Role string

const (
	RoleCandidate Role = "candidate"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

type Profile struct {
	Headline string   `json:"headline,omitempty"`
	Company  string   `json:"company,omitempty"`
	Location string   `json:"location,omitempty"`
	Skills   []string `json:"skills,omitempty"`
}

type User struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email,omitempty"`
	Role           Role    `json:"role,omitempty"`
	ProfilePicture string  `json:"profile_picture,omitempty"`
	Profile        Profile `json:"profile"`
}

// CanModerate reports whether the user may review applications and moderate posts.
func (u User) CanModerate() bool {
	return u.Role == RoleRecruiter || u.Role == RoleAdmin
}
