package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/reathuta/lms/internal/models"
)

// RegisterValidators adds the domain rules used in request binding tags to gin's
// validator engine.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("lessontype", func(fl validator.FieldLevel) bool {
		return models.LessonType(fl.Field().String()).Valid()
	})
}
