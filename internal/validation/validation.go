package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"placement-portal/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct 按 validate 标签校验请求，失败时返回 Validation 错误并列出所有字段问题。
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperr.Validation(Format(verrs))
	}
	return apperr.Validation(err.Error())
}

// Format 将字段错误拼接为可读文本。
func Format(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			parts = append(parts, e.Field()+" is required")
		case "min", "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
		case "max", "lte":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
		default:
			parts = append(parts, e.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
