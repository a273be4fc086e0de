package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ledger-api/internal/middleware"
	"github.com/noah-isme/course-ledger-api/internal/models"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

func callerFromContext(c *gin.Context) (models.Principal, error) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "caller identity missing")
	}
	return caller, nil
}

func int64Param(c *gin.Context, name string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be an integer")
	}
	return value, nil
}

// studentCourseQuery reads ?student=&course_id= into a key.
func studentCourseQuery(c *gin.Context) (models.StudentCourseKey, error) {
	student := strings.TrimSpace(c.Query("student"))
	if student == "" {
		return models.StudentCourseKey{}, appErrors.Clone(appErrors.ErrValidation, "student is required")
	}
	courseID, err := strconv.ParseInt(strings.TrimSpace(c.Query("course_id")), 10, 64)
	if err != nil {
		return models.StudentCourseKey{}, appErrors.Clone(appErrors.ErrValidation, "course_id must be an integer")
	}
	return models.StudentCourseKey{Student: models.Principal(student), CourseID: courseID}, nil
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}

var errAmountRequired = errors.New("amount is required")
