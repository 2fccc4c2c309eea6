package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/vexpense/vexpense/internal/models"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/response"
	appValidator "github.com/vexpense/vexpense/pkg/validator"
)

func init() {
	// currency accepts the declared models.Currency codes in any letter case.
	if err := appValidator.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseCurrency(fl.Field().String())
		return ok
	}); err != nil {
		panic(err)
	}
}

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, apperrors.NewBadRequest("Invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, apperrors.NewValidationFailed(formatValidationError(err)))
		return false
	}

	return true
}

func formatValidationError(err error) string {
	var ve appValidator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Invalid request payload"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		messages = append(messages, failure.Message())
	}
	return strings.Join(messages, "; ")
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// parseBoolQuery returns nil when the parameter is absent or not a boolean.
func parseBoolQuery(c *gin.Context, key string) *bool {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil
	}
	return &parsed
}

// parseDateQuery reads an optional date parameter. endOfDay moves plain
// YYYY-MM-DD dates to the last instant of that day.
func parseDateQuery(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	ts, err := parseDate(key, value)
	if err != nil {
		return nil, err
	}
	if endOfDay && !strings.Contains(value, "T") {
		ts = ts.Add(24*time.Hour - time.Nanosecond)
	}
	return &ts, nil
}
