package integration

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// CredentialService mints non-fungible completion credentials.
type CredentialService struct {
	client *resty.Client
}

// NewCredentialService wraps a configured client.
func NewCredentialService(client *resty.Client) *CredentialService {
	return &CredentialService{client: client}
}

type credentialRequest struct {
	CourseID int64            `json:"course_id"`
	Student  models.Principal `json:"student"`
}

type credentialResponse struct {
	CredentialID int64 `json:"credential_id"`
}

// MintCredential issues a credential for courseID to student and returns its id.
func (c *CredentialService) MintCredential(ctx context.Context, courseID int64, student models.Principal) (int64, error) {
	var out credentialResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(credentialRequest{CourseID: courseID, Student: student}).
		SetResult(&out).
		Post("/credentials")
	if err := checkResponse("mint credential", resp, err); err != nil {
		return 0, err
	}
	return out.CredentialID, nil
}
