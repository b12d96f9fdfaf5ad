package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/chorus/internal/domain"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
// Domain inputs that carry their own Validate method are checked with it so
// handlers see the domain's ValidationError.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"json", "query", "form"} {
			if name, _, _ := strings.Cut(fld.Tag.Get(key), ","); name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	return &CustomValidator{validator: v}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	if v, ok := i.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	err := cv.validator.Struct(i)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fmt.Sprintf("failed %q validation", fe.Tag())
		if fe.Tag() == "required" {
			reason = "is required"
		}
		return &domain.ValidationError{Field: fe.Field(), Reason: reason}
	}
	return err
}

// SendMessageRequest is the body of POST /api/messages.
type SendMessageRequest struct {
	Scope   string `json:"scope" validate:"required"`
	Content string `json:"content"`
}

// EditMessageRequest is the body of PATCH /api/messages/:id.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// RenameConversationRequest is the body of PATCH /api/conversations/:id.
// A null name clears it.
type RenameConversationRequest struct {
	Name *string `json:"name"`
}

// ListMessagesRequest binds the query of GET /api/messages. A zero limit
// means DefaultHistoryLimit.
type ListMessagesRequest struct {
	Scope string `query:"scope" validate:"required"`
	Limit int    `query:"limit" validate:"gte=0,lte=100"`
}

// SearchProfilesRequest binds the query of GET /api/profiles.
type SearchProfilesRequest struct {
	Query string `query:"q" validate:"required,max=50"`
	Limit int    `query:"limit" validate:"gte=0,lte=50"`
}
