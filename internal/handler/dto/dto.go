// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/smartpick/smartpick/internal/model"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Request body errors.
var (
	ErrInvalidJSON = errors.New("invalid JSON body")
	ErrNotObject   = errors.New("request body must be a JSON object")
)

// MessageResponse is the body of every error and confirmation response.
type MessageResponse struct {
	Message string `json:"message"`
}

// UpdateResult mirrors a document store update acknowledgment.
type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
	UpsertedCount int64 `json:"upsertedCount"`
	UpsertedID    any   `json:"upsertedId"`
}

// NewUpdateResult builds the acknowledgment for an update that matched
// and modified n documents.
func NewUpdateResult(n int64) UpdateResult {
	return UpdateResult{Acknowledged: true, MatchedCount: n, ModifiedCount: n}
}

// CreateRecommendationRequest holds the fields of a recommendation body that
// the server interprets. All other fields are stored as given.
type CreateRecommendationRequest struct {
	QueryID string `json:"queryId" validate:"required"`
}

// DecodeFields reads a JSON object of arbitrary fields. An empty body is an
// empty object.
func DecodeFields(r io.Reader) (model.Fields, error) {
	var raw any
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Fields{}, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return model.Fields(obj), nil
}

// DecodeRecommendation reads a recommendation body and validates that it
// names a query.
func DecodeRecommendation(r io.Reader) (*CreateRecommendationRequest, model.Fields, error) {
	fields, err := DecodeFields(r)
	if err != nil {
		return nil, nil, err
	}

	req := &CreateRecommendationRequest{}
	if v, present := fields[model.KeyQueryID]; present {
		s, ok := v.(string)
		if !ok {
			return nil, nil, &ValidationError{msgs: []string{"field 'queryId' must be a string"}}
		}
		req.QueryID = strings.TrimSpace(s)
	}

	if err := Validate(req); err != nil {
		return nil, nil, err
	}
	return req, fields, nil
}

// Validate validates a struct using go-playground/validator tags.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' %s", fe.Field(), msgForTag(fe)))
			}
			return &ValidationError{msgs: msgs}
		}
		return err
	}
	return nil
}

// ValidationError reports request fields that failed validation.
type ValidationError struct {
	msgs []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.msgs, "; ")
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
