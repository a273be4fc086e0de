package integration

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// AuthorityRegistry answers whether a principal is a recognised authority.
type AuthorityRegistry struct {
	client *resty.Client
}

// NewAuthorityRegistry wraps a configured client.
func NewAuthorityRegistry(client *resty.Client) *AuthorityRegistry {
	return &AuthorityRegistry{client: client}
}

type verificationResponse struct {
	Verified bool `json:"verified"`
}

// IsVerifiedAuthority calls GET /authorities/{principal}. Unknown principals are not verified.
func (a *AuthorityRegistry) IsVerifiedAuthority(ctx context.Context, principal models.Principal) (bool, error) {
	var out verificationResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("principal", principal.String()).
		SetResult(&out).
		Get("/authorities/{principal}")
	if err == nil && isNotFound(resp) {
		return false, nil
	}
	if err := checkResponse("verify authority", resp, err); err != nil {
		return false, err
	}
	return out.Verified, nil
}
