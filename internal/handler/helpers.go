package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pagination represents pagination parameters for list operations.
type Pagination struct {
	Limit  int
	Offset int
}

// DefaultPagination provides default pagination values.
var DefaultPagination = Pagination{Limit: 50, Offset: 0}

// ParsePagination extracts limit and offset query parameters with validation.
// maxLimit specifies the maximum allowed limit (0 for no maximum).
func ParsePagination(c *fiber.Ctx, maxLimit int) Pagination {
	p := Pagination{
		Limit:  parseQueryInt(c, "limit", DefaultPagination.Limit),
		Offset: parseQueryInt(c, "offset", DefaultPagination.Offset),
	}

	if p.Limit < 0 {
		p.Limit = DefaultPagination.Limit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	return p
}

// parseQueryInt parses an integer query parameter with a default value.
func parseQueryInt(c *fiber.Ctx, key string, defaultValue int) int {
	val := c.Query(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// queryStringPtr returns a pointer to a query parameter value, or nil when
// the parameter is absent.
func queryStringPtr(c *fiber.Ctx, key string) *string {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	return &val
}

// queryTimePtr parses an RFC 3339 query parameter.
// Returns nil if the parameter is empty or invalid.
func queryTimePtr(c *fiber.Ctx, key string) *time.Time {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorResponse creates a standardized JSON error response.
func errorResponse(c *fiber.Ctx, statusCode int, message string) error {
	errorName := "Error"
	switch statusCode {
	case fiber.StatusBadRequest:
		errorName = "Bad Request"
	case fiber.StatusUnauthorized:
		errorName = "Unauthorized"
	case fiber.StatusForbidden:
		errorName = "Forbidden"
	case fiber.StatusNotFound:
		errorName = "Not Found"
	case fiber.StatusConflict:
		errorName = "Conflict"
	case fiber.StatusTooManyRequests:
		errorName = "Too Many Requests"
	case fiber.StatusServiceUnavailable:
		errorName = "Service Unavailable"
	case fiber.StatusInternalServerError:
		errorName = "Internal Server Error"
	}

	return c.Status(statusCode).JSON(ErrorResponse{
		Error:   errorName,
		Message: message,
	})
}
