package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"portal-service/internal/models"
)

// ErrUnexpectedShape is returned when a response has no list or object where one was expected.
var ErrUnexpectedShape = errors.New("unexpected response shape")

var envelopeKeys = []string{"data", "items", "results"}

// unwrapList accepts a bare array or an array nested under one of keys (or a data envelope).
func unwrapList(raw json.RawMessage, keys ...string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		candidates := make([]string, 0, len(keys)+len(envelopeKeys))
		candidates = append(candidates, keys...)
		candidates = append(candidates, envelopeKeys...)
		for _, key := range candidates {
			if nested, ok := obj[key]; ok {
				return unwrapList(nested, keys...)
			}
		}
	}
	return nil, fmt.Errorf("%w: expected a list under %v", ErrUnexpectedShape, keys)
}

// unwrapObject returns the object nested under one of keys or a data envelope, or raw itself.
func unwrapObject(raw json.RawMessage, keys ...string) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return trimmed
	}
	for _, key := range keys {
		if nested, ok := obj[key]; ok && isObject(nested) {
			return unwrapObject(nested, keys...)
		}
	}
	if nested, ok := obj["data"]; ok && isObject(nested) {
		return unwrapObject(nested, keys...)
	}
	return trimmed
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func decodeList[W any, T any](raw json.RawMessage, convert func(W) T, keys ...string) ([]T, error) {
	items, err := unwrapList(raw, keys...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var w W
		if err := json.Unmarshal(item, &w); err != nil {
			return nil, fmt.Errorf("failed to decode list item: %w", err)
		}
		out = append(out, convert(w))
	}
	return out, nil
}

func decodeOne[W any, T any](raw json.RawMessage, convert func(W) T, keys ...string) (T, error) {
	var w W
	if err := json.Unmarshal(unwrapObject(raw, keys...), &w); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to decode response: %w", err)
	}
	return convert(w), nil
}

// flexID accepts string and numeric identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	if trimmed[0] == '{' {
		var oid struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(trimmed, &oid); err != nil {
			return err
		}
		*f = flexID(oid.OID)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("invalid id %s", trimmed)
	}
	*f = flexID(n.String())
	return nil
}

// wireTime tolerates missing or malformed timestamps.
type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
	}
	return nil
}

func firstTime(times ...wireTime) time.Time {
	for _, t := range times {
		if !t.IsZero() {
			return t.Time
		}
	}
	return time.Time{}
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstID(values ...flexID) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

type wireProfile struct {
	Headline       string   `json:"headline"`
	Company        string   `json:"company"`
	Location       string   `json:"location"`
	Skills         []string `json:"skills"`
	ProfilePicture string   `json:"profilePicture"`
}

type wireUser struct {
	ID             flexID       `json:"id"`
	MongoID        flexID       `json:"_id"`
	Name           string       `json:"name"`
	FullName       string       `json:"fullName"`
	Username       string       `json:"username"`
	Email          string       `json:"email"`
	Role           string       `json:"role"`
	ProfilePicture string       `json:"profilePicture"`
	PictureSnake   string       `json:"profile_picture"`
	Headline       string       `json:"headline"`
	Company        string       `json:"company"`
	Location       string       `json:"location"`
	Skills         []string     `json:"skills"`
	Profile        *wireProfile `json:"profile"`
}

func (w wireUser) toModel() models.User {
	user := models.User{
		ID:             firstID(w.ID, w.MongoID),
		Name:           firstString(w.Name, w.FullName, w.Username),
		Email:          w.Email,
		Role:           models.Role(strings.ToLower(w.Role)),
		ProfilePicture: firstString(w.ProfilePicture, w.PictureSnake),
		Profile: models.Profile{
			Headline: w.Headline,
			Company:  w.Company,
			Location: w.Location,
			Skills:   w.Skills,
		},
	}
	if p := w.Profile; p != nil {
		user.Profile.Headline = firstString(p.Headline, user.Profile.Headline)
		user.Profile.Company = firstString(p.Company, user.Profile.Company)
		user.Profile.Location = firstString(p.Location, user.Profile.Location)
		if len(p.Skills) > 0 {
			user.Profile.Skills = p.Skills
		}
		user.ProfilePicture = firstString(user.ProfilePicture, p.ProfilePicture)
	}
	return user
}

func userFromWire(w wireUser) models.User { return w.toModel() }

// userRef is either a bare id or an embedded user object.
type userRef struct {
	models.User
}

func (r *userRef) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] != '{' {
		var id flexID
		if err := id.UnmarshalJSON(trimmed); err != nil {
			return err
		}
		r.User = models.User{ID: string(id)}
		return nil
	}
	var w wireUser
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return err
	}
	r.User = w.toModel()
	return nil
}

func refUser(refs ...*userRef) models.User {
	for _, ref := range refs {
		if ref != nil && ref.ID != "" {
			return ref.User
		}
	}
	return models.User{}
}

type wireConnection struct {
	ID        flexID   `json:"id"`
	MongoID   flexID   `json:"_id"`
	User      *userRef `json:"user"`
	CreatedAt wireTime `json:"createdAt"`
	Created   wireTime `json:"created_at"`
}

// decodeConnection handles both {id, user} records and bare user records.
func decodeConnection(raw json.RawMessage) (models.Connection, error) {
	var w wireConnection
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.Connection{}, err
	}
	if w.User == nil {
		var u wireUser
		if err := json.Unmarshal(raw, &u); err != nil {
			return models.Connection{}, err
		}
		user := u.toModel()
		return models.Connection{ID: user.ID, User: user, CreatedAt: firstTime(w.CreatedAt, w.Created)}, nil
	}
	return models.Connection{
		ID:        firstID(w.ID, w.MongoID),
		User:      w.User.User,
		CreatedAt: firstTime(w.CreatedAt, w.Created),
	}, nil
}

type wireRequest struct {
	ID        flexID   `json:"id"`
	MongoID   flexID   `json:"_id"`
	Requester *userRef `json:"requester"`
	Sender    *userRef `json:"sender"`
	Recipient *userRef `json:"recipient"`
	Receiver  *userRef `json:"receiver"`
	Status    string   `json:"status"`
	CreatedAt wireTime `json:"createdAt"`
	Created   wireTime `json:"created_at"`
}

func requestFromWire(w wireRequest) models.ConnectionRequest {
	status := models.RequestStatus(strings.ToLower(w.Status))
	switch status {
	case "":
		status = models.RequestStatusPending
	case "rejected":
		status = models.RequestStatusDeclined
	}
	return models.ConnectionRequest{
		ID:        firstID(w.ID, w.MongoID),
		Requester: refUser(w.Requester, w.Sender),
		Recipient: refUser(w.Recipient, w.Receiver),
		Status:    status,
		CreatedAt: firstTime(w.CreatedAt, w.Created),
	}
}

type wireComment struct {
	ID        flexID   `json:"id"`
	MongoID   flexID   `json:"_id"`
	User      *userRef `json:"user"`
	Author    *userRef `json:"author"`
	Content   string   `json:"content"`
	CreatedAt wireTime `json:"createdAt"`
	Created   wireTime `json:"created_at"`
}

type wirePost struct {
	ID          flexID        `json:"id"`
	MongoID     flexID        `json:"_id"`
	Author      *userRef      `json:"author"`
	Content     string        `json:"content"`
	Image       string        `json:"image"`
	Status      string        `json:"status"`
	Hidden      bool          `json:"isHidden"`
	Likes       []userRef     `json:"likes"`
	Comments    []wireComment `json:"comments"`
	Shares      int           `json:"shares"`
	SharesCount int           `json:"sharesCount"`
	CreatedAt   wireTime      `json:"createdAt"`
	Created     wireTime      `json:"created_at"`
}

func postFromWire(w wirePost) models.Post {
	post := models.Post{
		ID:        firstID(w.ID, w.MongoID),
		Author:    refUser(w.Author),
		Content:   w.Content,
		Image:     w.Image,
		Status:    models.PostStatus(strings.ToLower(w.Status)),
		Likes:     make([]string, 0, len(w.Likes)),
		Comments:  make([]models.Comment, 0, len(w.Comments)),
		Shares:    w.Shares,
		CreatedAt: firstTime(w.CreatedAt, w.Created),
	}
	if post.Shares == 0 {
		post.Shares = w.SharesCount
	}
	if w.Hidden {
		post.Status = models.PostHidden
	}
	if post.Status == "" {
		post.Status = models.PostVisible
	}
	for _, like := range w.Likes {
		post.Likes = append(post.Likes, like.ID)
	}
	for _, c := range w.Comments {
		post.Comments = append(post.Comments, models.Comment{
			ID:        firstID(c.ID, c.MongoID),
			Author:    refUser(c.User, c.Author),
			Content:   c.Content,
			CreatedAt: firstTime(c.CreatedAt, c.Created),
		})
	}
	return post
}

// nameOrString decodes "Acme" or {"name": "Acme"}.
type nameOrString string

func (n *nameOrString) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*n = nameOrString(s)
		return nil
	}
	var obj struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	*n = nameOrString(firstString(obj.Name, obj.Content))
	return nil
}

type wireJob struct {
	ID           flexID       `json:"id"`
	MongoID      flexID       `json:"_id"`
	Title        string       `json:"title"`
	Company      nameOrString `json:"company"`
	CompanyName  string       `json:"company_name"`
	Location     string       `json:"location"`
	Type         string       `json:"type"`
	JobType      string       `json:"jobType"`
	Description  string       `json:"description"`
	Requirements []string     `json:"requirements"`
	Salary       nameOrString `json:"salary"`
	PostedBy     *userRef     `json:"postedBy"`
	Status       string       `json:"status"`
	CreatedAt    wireTime     `json:"createdAt"`
	Created      wireTime     `json:"created_at"`
}

func jobFromWire(w wireJob) models.Job {
	return models.Job{
		ID:           firstID(w.ID, w.MongoID),
		Title:        w.Title,
		Company:      firstString(string(w.Company), w.CompanyName),
		Location:     w.Location,
		Type:         firstString(w.Type, w.JobType),
		Description:  w.Description,
		Requirements: w.Requirements,
		Salary:       string(w.Salary),
		PostedBy:     refUser(w.PostedBy).ID,
		Status:       w.Status,
		CreatedAt:    firstTime(w.CreatedAt, w.Created),
	}
}

// jobRef is either a bare job id or an embedded job.
type jobRef struct {
	models.Job
}

func (r *jobRef) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] != '{' {
		var id flexID
		if err := id.UnmarshalJSON(trimmed); err != nil {
			return err
		}
		r.Job = models.Job{ID: string(id)}
		return nil
	}
	var w wireJob
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return err
	}
	r.Job = jobFromWire(w)
	return nil
}

type wireApplication struct {
	ID          flexID   `json:"id"`
	MongoID     flexID   `json:"_id"`
	Job         *jobRef  `json:"job"`
	Applicant   *userRef `json:"applicant"`
	Candidate   *userRef `json:"candidate"`
	User        *userRef `json:"user"`
	Status      string   `json:"status"`
	CoverLetter string   `json:"coverLetter"`
	Resume      string   `json:"resume"`
	ResumeURL   string   `json:"resumeUrl"`
	CreatedAt   wireTime `json:"createdAt"`
	Created     wireTime `json:"created_at"`
}

func applicationFromWire(w wireApplication) models.Application {
	app := models.Application{
		ID:          firstID(w.ID, w.MongoID),
		Applicant:   refUser(w.Applicant, w.Candidate, w.User),
		Status:      models.ApplicationStatus(strings.ToLower(w.Status)),
		CoverLetter: w.CoverLetter,
		ResumeURL:   firstString(w.ResumeURL, w.Resume),
		CreatedAt:   firstTime(w.CreatedAt, w.Created),
	}
	if w.Job != nil {
		app.Job = w.Job.Job
	}
	if app.Status == "" {
		app.Status = models.ApplicationPending
	}
	return app
}

type wireConversation struct {
	ID           flexID       `json:"id"`
	MongoID      flexID       `json:"_id"`
	Participants []userRef    `json:"participants"`
	LastMessage  nameOrString `json:"lastMessage"`
	UpdatedAt    wireTime     `json:"updatedAt"`
	Updated      wireTime     `json:"updated_at"`
}

func conversationFromWire(w wireConversation) models.Conversation {
	conv := models.Conversation{
		ID:          firstID(w.ID, w.MongoID),
		LastMessage: string(w.LastMessage),
		UpdatedAt:   firstTime(w.UpdatedAt, w.Updated),
	}
	for _, p := range w.Participants {
		conv.Participants = append(conv.Participants, p.User)
	}
	return conv
}

type wireMessage struct {
	ID           flexID   `json:"id"`
	MongoID      flexID   `json:"_id"`
	Conversation flexID   `json:"conversationId"`
	ChatID       flexID   `json:"chatId"`
	Sender       *userRef `json:"sender"`
	Content      string   `json:"content"`
	Text         string   `json:"text"`
	CreatedAt    wireTime `json:"createdAt"`
	Created      wireTime `json:"created_at"`
}

func messageFromWire(w wireMessage) models.Message {
	return models.Message{
		ID:             firstID(w.ID, w.MongoID),
		ConversationID: firstID(w.Conversation, w.ChatID),
		Sender:         refUser(w.Sender),
		Content:        firstString(w.Content, w.Text),
		CreatedAt:      firstTime(w.CreatedAt, w.Created),
	}
}

type wireNotification struct {
	ID        flexID   `json:"id"`
	MongoID   flexID   `json:"_id"`
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	Read      bool     `json:"read"`
	IsRead    bool     `json:"isRead"`
	CreatedAt wireTime `json:"createdAt"`
	Created   wireTime `json:"created_at"`
}

func notificationFromWire(w wireNotification) models.Notification {
	return models.Notification{
		ID:        firstID(w.ID, w.MongoID),
		Type:      w.Type,
		Message:   w.Message,
		Read:      w.Read || w.IsRead,
		CreatedAt: firstTime(w.CreatedAt, w.Created),
	}
}
