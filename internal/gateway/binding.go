package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/vyrodovalexey/txgw/internal/auth"
	"github.com/vyrodovalexey/txgw/internal/util"
)

// RegisterBody is the inbound registration payload.
type RegisterBody struct {
	Username  string `json:"username" form:"username" binding:"required"`
	Password  string `json:"password" form:"password" binding:"required"`
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
}

// LoginBody is the inbound login form.
type LoginBody struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// TransactionBody is the inbound transaction payload.
type TransactionBody struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Type   string  `json:"type" binding:"required,oneof=debit credit"`
}

// ReportBody is the inbound report payload. Timestamps are validated and
// normalized by the handler.
type ReportBody struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

// transactionPayload is sent to the transaction service. UserID comes from
// the verified identity, never from the client.
type transactionPayload struct {
	Amount float64 `json:"amount"`
	Type   string  `json:"type"`
	UserID any     `json:"user_id"`
}

type reportPayload struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	UserID any    `json:"user_id"`
}

// userIDValue forwards numeric subjects as numbers.
func userIDValue(id *auth.Identity) any {
	if n, ok := id.UserID(); ok {
		return n
	}
	return id.Subject
}

func newTransactionPayload(body TransactionBody, id *auth.Identity) transactionPayload {
	return transactionPayload{Amount: body.Amount, Type: body.Type, UserID: userIDValue(id)}
}

func newReportPayload(body ReportBody, id *auth.Identity) (reportPayload, error) {
	start, err := util.ParseTimestamp(body.Start)
	if err != nil {
		return reportPayload{}, newValidationError(invalidDatetime("start"))
	}
	end, err := util.ParseTimestamp(body.End)
	if err != nil {
		return reportPayload{}, newValidationError(invalidDatetime("end"))
	}
	return reportPayload{
		Start:  start.Format(time.RFC3339Nano),
		End:    end.Format(time.RFC3339Nano),
		UserID: userIDValue(id),
	}, nil
}

// FieldViolation is one entry of a 422 detail list.
type FieldViolation struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError is an inbound payload that failed binding.
type ValidationError struct {
	Violations []FieldViolation
}

func newValidationError(v ...FieldViolation) *ValidationError {
	return &ValidationError{Violations: v}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = strings.Join(v.Loc, ".") + ": " + v.Msg
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// HTTPError renders the violations as a 422.
func (e *ValidationError) HTTPError() *HTTPError {
	b, _ := json.Marshal(e.Violations)
	return &HTTPError{Status: http.StatusUnprocessableEntity, Detail: b}
}

func invalidDatetime(field string) FieldViolation {
	return FieldViolation{
		Loc:  []string{"body", field},
		Msg:  "invalid datetime format",
		Type: "value_error.datetime",
	}
}

var registerTagNamesOnce sync.Once

// registerTagNames makes validator report wire names (json, then form)
// instead of Go field names.
func registerTagNames() {
	registerTagNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}

// bindBody binds the request body into obj. JSON is expected unless
// allowForm is set and the client sent a form.
func bindBody(c *gin.Context, obj any, allowForm bool) error {
	var err error
	if allowForm && c.ContentType() != binding.MIMEJSON {
		err = c.ShouldBind(obj)
	} else {
		err = c.ShouldBindWith(obj, binding.JSON)
	}
	if err == nil {
		return nil
	}
	return bindingError(err)
}

// bindingError converts decoder and validator failures into violations.
func bindingError(err error) *ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]FieldViolation, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, fieldViolation(fe))
		}
		return newValidationError(out...)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return newValidationError(FieldViolation{
			Loc:  []string{"body", typeErr.Field},
			Msg:  fmt.Sprintf("value is not a valid %s", typeErr.Type.Kind()),
			Type: "type_error." + typeErr.Type.Kind().String(),
		})
	}

	if errors.Is(err, io.EOF) {
		return newValidationError(FieldViolation{
			Loc:  []string{"body"},
			Msg:  "field required",
			Type: "value_error.missing",
		})
	}

	return newValidationError(FieldViolation{
		Loc:  []string{"body"},
		Msg:  "request body is not valid",
		Type: "value_error.jsondecode",
	})
}

func fieldViolation(fe validator.FieldError) FieldViolation {
	v := FieldViolation{Loc: []string{"body", fe.Field()}}
	switch fe.Tag() {
	case "required":
		v.Msg, v.Type = "field required", "value_error.missing"
	case "gt":
		v.Msg = "ensure this value is greater than " + fe.Param()
		v.Type = "value_error.number.not_gt"
	case "oneof":
		v.Msg = "value is not a valid enumeration member; permitted: " +
			strings.Join(strings.Fields(fe.Param()), ", ")
		v.Type = "type_error.enum"
	default:
		v.Msg = fmt.Sprintf("failed on the '%s' validation", fe.Tag())
		v.Type = "value_error." + fe.Tag()
	}
	return v
}
