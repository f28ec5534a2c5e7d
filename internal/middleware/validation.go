package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "casepulse/internal/errors"
	"casepulse/internal/exporter"
	"casepulse/pkg/contracts/domain"
)

const queryTag = "query"

// QueryValidator binds URL query parameters into tagged structs and validates them.
//
//	type tableQuery struct {
//		Status string `query:"status" validate:"omitempty,status_filter"`
//		Page   int    `query:"page" validate:"gte=1"`
//	}
type QueryValidator struct {
	validator *validator.Validate
}

// NewQueryValidator creates a validator with the dashboard's custom rules registered.
func NewQueryValidator() *QueryValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("status_filter", isStatusFilter)
	_ = v.RegisterValidation("sort_key", isSortKey)
	_ = v.RegisterValidation("sort_order", isSortOrder)
	_ = v.RegisterValidation("export_format", isExportFormat)

	// Use query tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get(queryTag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &QueryValidator{validator: v}
}

// Bind copies query parameters into dst, a pointer to a struct with `query`
// tags, then validates it. Empty parameters leave the field's current value.
func (qv *QueryValidator) Bind(r *http.Request, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bind target must be a pointer to struct, got %T", dst)
	}

	values := r.URL.Query()
	elem := rv.Elem()
	typ := elem.Type()

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name := strings.SplitN(field.Tag.Get(queryTag), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}

		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			continue
		}

		fv := elem.Field(i)
		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return apierrors.InvalidParameter(name, fmt.Errorf("%s must be a valid integer", name))
			}
			fv.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return apierrors.InvalidParameter(name, fmt.Errorf("%s must be true or false", name))
			}
			fv.SetBool(b)
		default:
			return fmt.Errorf("unsupported query field kind %s for %s", fv.Kind(), name)
		}
	}

	return qv.ValidateStruct(dst)
}

// ValidateStruct validates a struct and returns validation errors
func (qv *QueryValidator) ValidateStruct(v interface{}) error {
	err := qv.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	validationErrors := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(validationErrors)
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "status_filter":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(statusFilterNames(), ", "))
	case "sort_key":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(sortKeyNames(), ", "))
	case "sort_order":
		return fmt.Sprintf("%s must be asc or desc", field)
	case "export_format":
		return fmt.Sprintf("%s must be csv or xlsx", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func isStatusFilter(fl validator.FieldLevel) bool {
	_, err := domain.ParseStatusFilter(fl.Field().String())
	return err == nil
}

func isSortKey(fl validator.FieldLevel) bool {
	_, err := domain.ParseSortKey(fl.Field().String())
	return err == nil
}

func isSortOrder(fl validator.FieldLevel) bool {
	_, err := domain.ParseSortOrder(fl.Field().String(), domain.SortByTotal)
	return err == nil
}

func isExportFormat(fl validator.FieldLevel) bool {
	return exporter.Format(strings.ToLower(fl.Field().String())).Valid()
}

func statusFilterNames() []string {
	options := domain.StatusOptions()
	names := make([]string, 0, len(options))
	for _, o := range options {
		names = append(names, o.Value)
	}
	return names
}

func sortKeyNames() []string {
	return []string{
		string(domain.SortByState),
		string(domain.SortByTotal),
		string(domain.SortByActive),
		string(domain.SortByRecovered),
		string(domain.SortByDeceased),
	}
}
