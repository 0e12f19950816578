package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// FieldError names one field that failed a binding or constraint check.
type FieldError struct {
	Field  string
	Reason string
}

// checkConstraints evaluates every constraint in spec (other than
// "default", which setField already consumed) against fv, a
// registry-driven model reduced to the constraints SPEC_FULL names:
// required, min, max, len, enum, regex.
func checkConstraints(field string, spec fieldSpec, fv reflect.Value) *FieldError {
	for _, name := range spec.order {
		param := spec.constraints[name]

		switch name {
		case "default":
			continue

		case "required":
			if fv.IsZero() {
				return &FieldError{Field: field, Reason: "is required"}
			}

		case "min":
			if err := checkMin(fv, param); err != "" {
				return &FieldError{Field: field, Reason: err}
			}

		case "max":
			if err := checkMax(fv, param); err != "" {
				return &FieldError{Field: field, Reason: err}
			}

		case "len":
			n, _ := strconv.Atoi(param)
			if l := reflectLen(fv); l != n {
				return &FieldError{Field: field, Reason: fmt.Sprintf("must have length %d", n)}
			}

		case "enum":
			if fv.Kind() == reflect.String {
				options := strings.Split(param, "|")
				if fv.String() != "" && !contains(options, fv.String()) {
					return &FieldError{Field: field, Reason: "must be one of " + param}
				}
			}

		case "regex":
			if fv.Kind() == reflect.String && fv.String() != "" {
				re, err := regexp.Compile(param)
				if err == nil && !re.MatchString(fv.String()) {
					return &FieldError{Field: field, Reason: "does not match pattern " + param}
				}
			}
		}
	}
	return nil
}

func checkMin(fv reflect.Value, param string) string {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		min, _ := strconv.ParseInt(param, 10, 64)
		if fv.Int() < min {
			return fmt.Sprintf("must be at least %d", min)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		min, _ := strconv.ParseUint(param, 10, 64)
		if fv.Uint() < min {
			return fmt.Sprintf("must be at least %d", min)
		}
	case reflect.Float32, reflect.Float64:
		min, _ := strconv.ParseFloat(param, 64)
		if fv.Float() < min {
			return fmt.Sprintf("must be at least %f", min)
		}
	case reflect.String:
		min, _ := strconv.Atoi(param)
		if len(fv.String()) < min {
			return fmt.Sprintf("must be at least %d characters", min)
		}
	case reflect.Slice, reflect.Array:
		min, _ := strconv.Atoi(param)
		if fv.Len() < min {
			return fmt.Sprintf("must have at least %d items", min)
		}
	}
	return ""
}

func checkMax(fv reflect.Value, param string) string {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		max, _ := strconv.ParseInt(param, 10, 64)
		if fv.Int() > max {
			return fmt.Sprintf("must be at most %d", max)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		max, _ := strconv.ParseUint(param, 10, 64)
		if fv.Uint() > max {
			return fmt.Sprintf("must be at most %d", max)
		}
	case reflect.Float32, reflect.Float64:
		max, _ := strconv.ParseFloat(param, 64)
		if fv.Float() > max {
			return fmt.Sprintf("must be at most %f", max)
		}
	case reflect.String:
		max, _ := strconv.Atoi(param)
		if len(fv.String()) > max {
			return fmt.Sprintf("must be at most %d characters", max)
		}
	case reflect.Slice, reflect.Array:
		max, _ := strconv.Atoi(param)
		if fv.Len() > max {
			return fmt.Sprintf("must have at most %d items", max)
		}
	}
	return ""
}

func reflectLen(fv reflect.Value) int {
	switch fv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return fv.Len()
	}
	return -1
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
