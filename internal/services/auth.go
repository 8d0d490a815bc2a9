package services

import (
	"context"
	"encoding/json"
	"fmt"

	"portal-service/internal/apiclient"
	"portal-service/internal/models"
)

type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type RegisterInput struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=6"`
	Role     models.Role `json:"role"`
}

type AuthService struct {
	client *apiclient.Client
}

func NewAuthService(client *apiclient.Client) *AuthService {
	return &AuthService{client: client}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	return s.authenticate(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if input.Role == "" {
		input.Role = models.RoleCandidate
	}
	return s.authenticate(ctx, "/auth/register", input)
}

func (s *AuthService) Profile(ctx context.Context) (models.User, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/auth/profile", nil, &raw); err != nil {
		return models.User{}, err
	}
	return decodeOne(raw, userFromWire, "user")
}

func (s *AuthService) authenticate(ctx context.Context, path string, body any) (*AuthResult, error) {
	var raw json.RawMessage
	if err := s.client.Post(ctx, path, body, &raw); err != nil {
		return nil, err
	}

	var resp struct {
		Token       string          `json:"token"`
		AccessToken string          `json:"accessToken"`
		User        json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(unwrapObject(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	token := firstString(resp.Token, resp.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("%w: auth response has no token", ErrUnexpectedShape)
	}

	result := &AuthResult{Token: token}
	if len(resp.User) > 0 {
		user, err := decodeOne(resp.User, userFromWire)
		if err != nil {
			return nil, err
		}
		result.User = user
	}
	return result, nil
}
