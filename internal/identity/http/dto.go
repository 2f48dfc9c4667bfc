package http

import (
	"time"

	"github.com/nimbus-labs/identity/internal/identity/domain"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenResponse mirrors the OAuth2 token response shape.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`
}

func newTokenResponse(pair *domain.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	}
}

type UserResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	RoleID        string `json:"role_id,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Active        bool   `json:"is_active"`
	LastLogin     string `json:"last_login,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func newUserResponse(u domain.User) UserResponse {
	resp := UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		RoleID:        u.RoleID,
		EmailVerified: u.EmailVerified,
		Active:        u.Active,
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.LastLogin != nil {
		resp.LastLogin = u.LastLogin.UTC().Format(time.RFC3339)
	}
	return resp
}

type RoleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	System      bool   `json:"system"`
}

func newRoleResponse(r domain.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		System:      r.IsSystem(),
	}
}

type PrivilegeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Module      string `json:"module"`
	Active      bool   `json:"is_active"`
}

func newPrivilegeResponse(p domain.Privilege) PrivilegeResponse {
	return PrivilegeResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Module:      p.Module,
		Active:      p.Active,
	}
}

// ListResponse wraps paginated collections.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
