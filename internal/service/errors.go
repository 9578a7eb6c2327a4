package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Locations of request values, used in validation error details.
const (
	inBody  = "body"
	inQuery = "query"
	inPath  = "path"
)

var registerOnce sync.Once

// fieldError describes one invalid request value.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// registerFieldNames makes validation errors report the names clients actually send instead of
// the Go field names.
func registerFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form", "uri"} {
				name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})
	})
}

// abortWithValidation responds with 422. Validator errors are listed per field, anything else
// (malformed JSON, a non numeric id) is reported for the location as a whole.
func abortWithValidation(c *gin.Context, location string, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []fieldError{{
			Loc:  []string{location},
			Msg:  err.Error(),
			Type: "value_error",
		}}})
		return
	}

	details := make([]fieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		details = append(details, fieldError{
			Loc:  []string{location, fe.Field()},
			Msg:  validationMessage(fe),
			Type: "value_error." + fe.Tag(),
		})
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": details})
}

func validationMessage(fe validator.FieldError) string {
	isText := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		if isText {
			return fmt.Sprintf("ensure this value has at least %s characters", fe.Param())
		}
		return fmt.Sprintf("ensure this value is greater than or equal to %s", fe.Param())
	case "max":
		if isText {
			return fmt.Sprintf("ensure this value has at most %s characters", fe.Param())
		}
		return fmt.Sprintf("ensure this value is less than or equal to %s", fe.Param())
	default:
		return "invalid value"
	}
}

// abortWithDetail responds with status and a plain message.
func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// abortWithServerError logs err and responds with 500 without leaking details to the client.
func abortWithServerError(c *gin.Context, msg string, err error) {
	slog.Error(msg, "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
	abortWithDetail(c, http.StatusInternalServerError, "Internal server error")
}
