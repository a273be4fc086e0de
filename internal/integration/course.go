package integration

import (
	"context"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

// CourseRegistry resolves course metadata.
type CourseRegistry struct {
	client *resty.Client
}

// NewCourseRegistry wraps a configured client.
func NewCourseRegistry(client *resty.Client) *CourseRegistry {
	return &CourseRegistry{client: client}
}

// GetCourse fetches a course. A 404 maps to appErrors.ErrCourseNotFound.
func (c *CourseRegistry) GetCourse(ctx context.Context, courseID int64) (*models.Course, error) {
	var out models.Course
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(courseID, 10)).
		SetResult(&out).
		Get("/courses/{id}")
	if err == nil && isNotFound(resp) {
		return nil, appErrors.ErrCourseNotFound
	}
	if err := checkResponse("get course", resp, err); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		out.ID = courseID
	}
	return &out, nil
}
