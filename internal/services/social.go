package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"portal-service/internal/apiclient"
	"portal-service/internal/models"
)

const defaultPageLimit = 10

// SocialService maps connection, post, chat and notification operations onto the REST API.
type SocialService struct {
	client *apiclient.Client
}

func NewSocialService(client *apiclient.Client) *SocialService {
	return &SocialService{client: client}
}

func pageQuery(page models.Page) url.Values {
	page = page.Normalize(defaultPageLimit)
	return url.Values{
		"page":  {strconv.Itoa(page.Number)},
		"limit": {strconv.Itoa(page.Limit)},
	}
}

func (s *SocialService) getRaw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, path, query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Connections

func (s *SocialService) SendConnectionRequest(ctx context.Context, userID string) error {
	return s.client.Post(ctx, "/connections/request/"+url.PathEscape(userID), nil, nil)
}

func (s *SocialService) RespondToRequest(ctx context.Context, requestID string, accept bool) error {
	action := "reject"
	if accept {
		action = "accept"
	}
	return s.client.Put(ctx, "/connections/"+url.PathEscape(requestID)+"/"+action, nil, nil)
}

func (s *SocialService) AcceptRequest(ctx context.Context, requestID string) error {
	return s.RespondToRequest(ctx, requestID, true)
}

func (s *SocialService) DeclineRequest(ctx context.Context, requestID string) error {
	return s.RespondToRequest(ctx, requestID, false)
}

func (s *SocialService) ListConnections(ctx context.Context) ([]models.Connection, error) {
	raw, err := s.getRaw(ctx, "/connections", nil)
	if err != nil {
		return nil, err
	}
	items, err := unwrapList(raw, "connections")
	if err != nil {
		return nil, err
	}
	out := make([]models.Connection, 0, len(items))
	for _, item := range items {
		conn, err := decodeConnection(item)
		if err != nil {
			return nil, fmt.Errorf("failed to decode connection: %w", err)
		}
		out = append(out, conn)
	}
	return out, nil
}

func (s *SocialService) ListReceivedRequests(ctx context.Context) ([]models.ConnectionRequest, error) {
	raw, err := s.getRaw(ctx, "/connections/requests", nil)
	if err != nil {
		return nil, err
	}
	return decodeList(raw, requestFromWire, "requests")
}

func (s *SocialService) ListSentRequests(ctx context.Context) ([]models.ConnectionRequest, error) {
	raw, err := s.getRaw(ctx, "/connections/sent", nil)
	if err != nil {
		return nil, err
	}
	return decodeList(raw, requestFromWire, "requests", "sentRequests")
}

func (s *SocialService) ListSuggestions(ctx context.Context, page models.Page) ([]models.User, error) {
	raw, err := s.getRaw(ctx, "/connections/suggestions", pageQuery(page))
	if err != nil {
		return nil, err
	}
	return decodeList(raw, userFromWire, "suggestions", "users")
}

func (s *SocialService) ListUsers(ctx context.Context, page models.Page) ([]models.User, error) {
	raw, err := s.getRaw(ctx, "/users", pageQuery(page))
	if err != nil {
		return nil, err
	}
	return decodeList(raw, userFromWire, "users")
}

func (s *SocialService) ConnectionStatus(ctx context.Context, userID string) (models.RemoteStatus, error) {
	raw, err := s.getRaw(ctx, "/connections/status/"+url.PathEscape(userID), nil)
	if err != nil {
		return models.RemoteStatus{}, err
	}
	var body struct {
		Status     string `json:"status"`
		RequestID  flexID `json:"requestId"`
		RequestID2 flexID `json:"request_id"`
	}
	if err := json.Unmarshal(unwrapObject(raw), &body); err != nil {
		return models.RemoteStatus{}, fmt.Errorf("failed to decode connection status: %w", err)
	}
	return models.RemoteStatus{Status: body.Status, RequestID: firstID(body.RequestID, body.RequestID2)}, nil
}

func (s *SocialService) RemoveConnection(ctx context.Context, connectionID string) error {
	return s.client.Delete(ctx, "/connections/"+url.PathEscape(connectionID), nil)
}

// Posts

func (s *SocialService) Feed(ctx context.Context, page models.Page) ([]models.Post, error) {
	raw, err := s.getRaw(ctx, "/posts", pageQuery(page))
	if err != nil {
		return nil, err
	}
	return decodeList(raw, postFromWire, "posts")
}

func (s *SocialService) CreatePost(ctx context.Context, content, image string) (models.Post, error) {
	body := map[string]string{"content": content}
	if image != "" {
		body["image"] = image
	}
	return s.postMutation(ctx, "/posts", body)
}

func (s *SocialService) DeletePost(ctx context.Context, postID string) error {
	return s.client.Delete(ctx, "/posts/"+url.PathEscape(postID), nil)
}

func (s *SocialService) LikePost(ctx context.Context, postID string) (models.Post, error) {
	return s.postMutation(ctx, "/posts/"+url.PathEscape(postID)+"/like", nil)
}

func (s *SocialService) CommentOnPost(ctx context.Context, postID, content string) (models.Post, error) {
	return s.postMutation(ctx, "/posts/"+url.PathEscape(postID)+"/comment", map[string]string{"content": content})
}

func (s *SocialService) SharePost(ctx context.Context, postID, content string) (models.Post, error) {
	return s.postMutation(ctx, "/posts/"+url.PathEscape(postID)+"/share", map[string]string{"content": content})
}

func (s *SocialService) PendingPosts(ctx context.Context, page models.Page) ([]models.Post, error) {
	raw, err := s.getRaw(ctx, "/posts/moderation/pending", pageQuery(page))
	if err != nil {
		return nil, err
	}
	return decodeList(raw, postFromWire, "posts")
}

func (s *SocialService) HidePost(ctx context.Context, postID string) error {
	return s.client.Put(ctx, "/posts/"+url.PathEscape(postID)+"/hide", nil, nil)
}

func (s *SocialService) ApprovePost(ctx context.Context, postID string) error {
	return s.client.Put(ctx, "/posts/"+url.PathEscape(postID)+"/approve", nil, nil)
}

func (s *SocialService) postMutation(ctx context.Context, path string, body any) (models.Post, error) {
	var raw json.RawMessage
	if err := s.client.Post(ctx, path, body, &raw); err != nil {
		return models.Post{}, err
	}
	if len(raw) == 0 {
		return models.Post{}, nil
	}
	return decodeOne(raw, postFromWire, "post")
}

// Chat

func (s *SocialService) Conversations(ctx context.Context) ([]models.Conversation, error) {
	raw, err := s.getRaw(ctx, "/chat/conversations", nil)
	if err != nil {
		return nil, err
	}
	return decodeList(raw, conversationFromWire, "conversations", "chats")
}

func (s *SocialService) Messages(ctx context.Context, conversationID string, page models.Page) ([]models.Message, error) {
	raw, err := s.getRaw(ctx, "/chat/conversations/"+url.PathEscape(conversationID)+"/messages", pageQuery(page))
	if err != nil {
		return nil, err
	}
	return decodeList(raw, messageFromWire, "messages")
}

func (s *SocialService) SendMessage(ctx context.Context, conversationID, content string) (models.Message, error) {
	var raw json.RawMessage
	path := "/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := s.client.Post(ctx, path, map[string]string{"content": content}, &raw); err != nil {
		return models.Message{}, err
	}
	return decodeOne(raw, messageFromWire, "message")
}

// Notifications

func (s *SocialService) Notifications(ctx context.Context) ([]models.Notification, error) {
	raw, err := s.getRaw(ctx, "/notifications", nil)
	if err != nil {
		return nil, err
	}
	return decodeList(raw, notificationFromWire, "notifications")
}

func (s *SocialService) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return s.client.Put(ctx, "/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil)
}
