package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"agenda-backend/internal/models"
	"agenda-backend/internal/schedule"
	"github.com/go-playground/validator/v10"
)

type Validator struct {
	v *validator.Validate
}

var (
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	slugRegex  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

func New() *Validator {
	v := validator.New()

	// report json field names in validation details
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	v.RegisterValidation("date", stringRule(func(value string) bool {
		_, err := time.Parse(schedule.DateLayout, value)
		return err == nil
	}))

	v.RegisterValidation("clock", stringRule(func(value string) bool {
		_, err := schedule.ToMinutes(value)
		return err == nil
	}))

	v.RegisterValidation("phone", stringRule(phoneRegex.MatchString))

	v.RegisterValidation("slug", stringRule(slugRegex.MatchString))

	v.RegisterValidation("status", stringRule(func(value string) bool {
		return models.MeetingStatus(value).Valid()
	}))

	v.RegisterValidation("channel", stringRule(func(value string) bool {
		switch value {
		case models.ChannelOnline, models.ChannelInPerson, models.ChannelPhone:
			return true
		}
		return false
	}))

	return &Validator{v: v}
}

func stringRule(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, isString := fl.Field().Interface().(string)
		if !isString {
			return false
		}
		return ok(value)
	}
}

func (v *Validator) Struct(s interface{}) error {
	return v.v.Struct(s)
}

func (v *Validator) ValidationErrors(err error) validator.ValidationErrors {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
