// Package integration holds the HTTP clients for the services the ledger
// depends on but does not own.
package integration

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/course-ledger-api/pkg/config"
)

const apiKeyHeader = "X-API-Key"

// StatusError reports a non-2xx answer from a collaborator.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

func newRestClient(baseURL, apiKey string, timeout time.Duration) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader(apiKeyHeader, apiKey)
	}
	return client
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		return &StatusError{Op: op, Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

func isNotFound(resp *resty.Response) bool {
	return resp != nil && resp.StatusCode() == http.StatusNotFound
}

// Clients bundles every collaborator client.
type Clients struct {
	Authorities *AuthorityRegistry
	Tokens      *TokenService
	Credentials *CredentialService
	Courses     *CourseRegistry
	Users       *UserRegistry
}

// NewClients builds the collaborator clients from configuration.
func NewClients(cfg config.CollaboratorsConfig) *Clients {
	build := func(url string) *resty.Client {
		return newRestClient(url, cfg.APIKey, cfg.Timeout)
	}
	return &Clients{
		Authorities: NewAuthorityRegistry(build(cfg.AuthorityRegistryURL)),
		Tokens:      NewTokenService(build(cfg.TokenServiceURL)),
		Credentials: NewCredentialService(build(cfg.CredentialServiceURL)),
		Courses:     NewCourseRegistry(build(cfg.CourseRegistryURL)),
		Users:       NewUserRegistry(build(cfg.UserRegistryURL)),
	}
}
