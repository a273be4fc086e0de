package integration

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// TokenService moves and mints fungible tokens.
type TokenService struct {
	client *resty.Client
}

// NewTokenService wraps a configured client.
func NewTokenService(client *resty.Client) *TokenService {
	return &TokenService{client: client}
}

type transferRequest struct {
	Amount int64            `json:"amount"`
	From   models.Principal `json:"from"`
	To     models.Principal `json:"to"`
}

type mintRequest struct {
	Amount    int64            `json:"amount"`
	Recipient models.Principal `json:"recipient"`
}

// Transfer moves amount from one principal to another.
func (t *TokenService) Transfer(ctx context.Context, amount int64, from, to models.Principal) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(transferRequest{Amount: amount, From: from, To: to}).
		Post("/transfers")
	return checkResponse("transfer tokens", resp, err)
}

// Mint issues amount new tokens to recipient.
func (t *TokenService) Mint(ctx context.Context, amount int64, recipient models.Principal) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(mintRequest{Amount: amount, Recipient: recipient}).
		Post("/mints")
	return checkResponse("mint tokens", resp, err)
}
