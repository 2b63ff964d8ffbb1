package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// RemoteVerifier asks the hosted auth API who owns a token.
type RemoteVerifier struct {
	httpClient *resty.Client
}

func NewRemoteVerifier(baseURL, apiKey string) *RemoteVerifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("apikey", apiKey)

	return &RemoteVerifier{httpClient: client}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	var user remoteUser
	resp, err := v.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		Get("/auth/v1/user")
	if err != nil {
		log.Error().Err(err).Msg("Auth API call failed")
		return nil, fmt.Errorf("failed to call auth API: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("auth API returned status %d", resp.StatusCode())
	}

	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: userID, Email: user.Email}, nil
}
