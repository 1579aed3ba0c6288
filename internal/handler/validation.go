package handler

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidatorsOnce sync.Once

// registerValidators добавляет тег notblank в валидатор gin.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
}

// bindingDetails переводит ошибки валидатора в короткие сообщения для поля details.
func bindingDetails(err error) []string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return nil
	}
	details := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		switch fe.Tag() {
		case "required", "notblank":
			details = append(details, fmt.Sprintf("%s is required", fe.Field()))
		case "min", "gte":
			details = append(details, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max", "lte":
			details = append(details, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "email":
			details = append(details, fmt.Sprintf("%s must be a valid email", fe.Field()))
		default:
			details = append(details, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return details
}
