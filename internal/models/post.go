package models

import "time"

type PostStatus string

const (
	PostVisible PostStatus = "visible"
	PostPending PostStatus = "pending"
	PostHidden  PostStatus = "hidden"
)

type Comment struct {
	ID        string    `json:"id"`
	Author    User      `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Post struct {
	ID        string     `json:"id"`
	Author    User       `json:"author"`
	Content   string     `json:"content"`
	Image     string     `json:"image,omitempty"`
	Status    PostStatus `json:"status,omitempty"`
	Likes     []string   `json:"likes"`
	Comments  []Comment  `json:"comments"`
	Shares    int        `json:"shares"`
	CreatedAt time.Time  `json:"created_at"`
}
