package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jebauza/VetFlow/internal/infra/ids"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
	})
	return validate
}

// fieldName reports the wire name of a struct field, preferring json then form tags.
func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

// bindAndValidate decodes the request body into dst according to its content type and validates it.
// It returns field-keyed errors ready for a 422 response, or nil.
func bindAndValidate(c *gin.Context, dst any) map[string][]string {
	if err := c.ShouldBind(dst); err != nil {
		return map[string][]string{"body": {"The request body is malformed."}}
	}
	return validateStruct(dst)
}

func validateStruct(dst any) map[string][]string {
	err := requestValidator().Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string][]string{"body": {"The request body is invalid."}}
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		name := fieldPath(fe)
		fields[name] = append(fields[name], validationMessage(fe))
	}
	return fields
}

// fieldPath turns "RoleSyncRequest.roles[0]" into "roles.0".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	ns = strings.NewReplacer("[", ".", "]", "").Replace(ns)
	return ns
}

func humanize(field string) string {
	field, _, _ = strings.Cut(field, "[")
	return strings.ReplaceAll(field, "_", " ")
}

func validationMessage(fe validator.FieldError) string {
	field := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "uuid", "uuid4", "uuid7":
		return messageInvalidUUID
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s field must be at least %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s field must have at least %s items.", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s field must not have more than %s items.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "datetime":
		return fmt.Sprintf("The %s field must match the format %s.", field, dateLayoutLabel)
	case "unique":
		return fmt.Sprintf("The %s field has a duplicate value.", field)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}

// pathUUID reads a path parameter and reports a 422 when it is not a UUID.
func pathUUID(c *gin.Context, param, field string) (string, bool) {
	id := c.Param(param)
	if !ids.IsUUID(id) {
		respondValidation(c, map[string][]string{field: {messageInvalidUUID}})
		return "", false
	}
	return id, true
}

// queryInt parses an optional integer query parameter. set is false when the parameter is absent.
func queryInt(c *gin.Context, name string, fields map[string][]string) (value int, set bool) {
	raw, ok := c.GetQuery(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		fields[name] = append(fields[name], fmt.Sprintf("The %s field must be an integer.", humanize(name)))
		return 0, true
	}
	return n, true
}
