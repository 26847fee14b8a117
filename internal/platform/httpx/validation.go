package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ValidationProblem is the 400 body listing failing fields.
type ValidationProblem struct {
	ProblemDetail
	Errors map[string]string `json:"errors"`
}

// RespondValidation writes err, typically validator.ValidationErrors, as a 400
// keyed by field name with the failing rule as value.
func RespondValidation(w http.ResponseWriter, err error) {
	out := ValidationProblem{
		ProblemDetail: ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest},
		Errors:        map[string]string{},
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			out.Errors[fe.Field()] = fe.Tag()
		}
	} else if err != nil {
		out.Detail = err.Error()
	}
	write(w, "application/problem+json", http.StatusBadRequest, out)
}
