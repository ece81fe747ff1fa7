package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// extPattern matches a file extension such as ".fbt".
	extPattern = regexp.MustCompile(`^\.[A-Za-z0-9_]+$`)
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields under their YAML names, which is what users edit.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := validate.RegisterValidation("fileext", func(fl validator.FieldLevel) bool {
		return extPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// Struct validates v against its `validate` tags and returns every failure
// joined into one error.
func Struct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	return formatValidationError(validate.Struct(v))
}

// ValidateExtension checks a single file extension such as ".fbt".
func ValidateExtension(ext string) error {
	if !extPattern.MatchString(ext) {
		return fmt.Errorf("extension %q must be a dot followed by letters, digits or underscores", ext)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	errs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), rootNamespace(e))
		param := e.Param()

		switch e.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s: field is required", field))
		case "min", "gte":
			errs = append(errs, fmt.Errorf("%s: must be at least %s", field, param))
		case "max", "lte":
			errs = append(errs, fmt.Errorf("%s: must not exceed %s", field, param))
		case "gt":
			errs = append(errs, fmt.Errorf("%s: must be greater than %s", field, param))
		case "oneof":
			errs = append(errs, fmt.Errorf("%s: must be one of [%s], got %q", field, param, fmt.Sprint(e.Value())))
		case "fileext":
			errs = append(errs, fmt.Errorf("%s: %q is not a file extension like .fbt", field, fmt.Sprint(e.Value())))
		default:
			errs = append(errs, fmt.Errorf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return errors.Join(errs...)
}

// rootNamespace returns the "Config." prefix of a namespace so messages read
// "analysis.max_depth" rather than "Config.analysis.max_depth".
func rootNamespace(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[:i+1]
	}
	return ""
}
