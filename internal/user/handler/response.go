package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"user-directory/internal/user/domain"
)

// Error codes carried in the failure envelope.
const (
	CodeValidation         = "ValidationError"
	CodeNotFound           = "UserNotFound"
	CodeConflict           = "UserConflict"
	CodePreconditionFailed = "PreconditionFailed"
	CodeRouteNotFound      = "RouteNotFound"
	CodeRateLimited        = "RateLimited"
	CodeInternal           = "InternalError"
)

// envelope is the body of every response: exactly one of Data or Error is set.
type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// userJSON is the wire form of a user.
type userJSON struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Phone     *string    `json:"phone"`
	Status    int        `json:"status"`
	Deleted   bool       `json:"deleted"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func toJSON(u *domain.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Status:    int(u.Status),
		Deleted:   u.Deleted,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		DeletedAt: u.DeletedAt,
	}
}

// OK writes data in the success envelope with status 200.
func OK(c *gin.Context, data gin.H) {
	c.JSON(http.StatusOK, envelope{Data: data})
}

// Fail writes the failure envelope and aborts the handler chain.
func Fail(c *gin.Context, status int, code, message, field string) {
	c.AbortWithStatusJSON(status, envelope{Error: &errorBody{Code: code, Message: message, Field: field}})
}

// statusOf maps err to an HTTP status and envelope code. Unknown errors map to 500.
func statusOf(err error) (status int, code, message, field string) {
	var (
		ve *domain.ValidationError
		pe *domain.PreconditionError
		ce *domain.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, CodeValidation, ve.Message, ve.Field
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "User not found", ""
	case errors.As(err, &ce):
		return http.StatusConflict, CodeConflict, ce.Error(), "email"
	case errors.As(err, &pe):
		return http.StatusPreconditionFailed, CodePreconditionFailed, pe.Message, ""
	default:
		return http.StatusInternalServerError, CodeInternal, "Internal server error", ""
	}
}
