package integration

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// UserRegistry reads and bumps learner levels.
type UserRegistry struct {
	client *resty.Client
}

// NewUserRegistry wraps a configured client.
func NewUserRegistry(client *resty.Client) *UserRegistry {
	return &UserRegistry{client: client}
}

// GetUser fetches the learner profile of a principal.
func (u *UserRegistry) GetUser(ctx context.Context, principal models.Principal) (*models.LearnerProfile, error) {
	var out models.LearnerProfile
	resp, err := u.client.R().
		SetContext(ctx).
		SetPathParam("principal", principal.String()).
		SetResult(&out).
		Get("/users/{principal}")
	if err := checkResponse("get user", resp, err); err != nil {
		return nil, err
	}
	if out.Principal == "" {
		out.Principal = principal
	}
	return &out, nil
}

type levelRequest struct {
	Level int64 `json:"level"`
}

// UpdateLevel sets the learner's level.
func (u *UserRegistry) UpdateLevel(ctx context.Context, principal models.Principal, level int64) error {
	resp, err := u.client.R().
		SetContext(ctx).
		SetPathParam("principal", principal.String()).
		SetBody(levelRequest{Level: level}).
		Put("/users/{principal}/level")
	return checkResponse("update level", resp, err)
}
