package validate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// BindError collects every field that failed binding or a constraint,
// rather than stopping at the first one, so a caller can report all of
// them in one response.
type BindError struct {
	Fields []FieldError
}

func (e *BindError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("%s %s", e.Fields[0].Field, e.Fields[0].Reason)
	}
	return fmt.Sprintf("%d fields failed validation", len(e.Fields))
}

// Bind populates schema, a pointer to struct, from source, coercing
// string field values into their Go types and applying each field's
// `torque` tag constraints (default, required, min, max, len, enum,
// regex). The coercion is a reflect-driven switch over Go kinds setting
// struct fields from url.Values-shaped string sources; the constraint
// language is a tag-registry model narrowed to what SPEC_FULL's schema
// grammar names.
func Bind(schema any, source Source) error {
	rv := reflect.ValueOf(schema)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("validate: Bind requires a non-nil pointer to struct")
	}
	rv = rv.Elem()

	if source.kind == "json" {
		if b, err := source.req.RawJSON(); err != nil {
			return err
		} else if len(b) > 0 {
			if err := json.Unmarshal(b, schema); err != nil {
				return fmt.Errorf("validate: decoding JSON body: %w", err)
			}
		}
	}

	var fields []FieldError
	bindStruct(rv, source, &fields)

	if len(fields) > 0 {
		return &BindError{Fields: fields}
	}
	return nil
}

func bindStruct(rv reflect.Value, source Source, fields *[]FieldError) {
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		sf := rt.Field(i)
		fv := rv.Field(i)
		if !fv.CanSet() {
			continue
		}

		tag := sf.Tag.Get(tagName)
		if tag == "-" {
			continue
		}
		if tag == "" {
			if fv.Kind() == reflect.Struct {
				bindStruct(fv, source, fields)
			}
			continue
		}

		spec := parseTag(tag)

		if source.kind != "json" {
			if key, bound := spec.sourceKeys[source.kind]; bound {
				raw, found := source.lookup(key)
				if !found || raw == "" {
					if def, hasDefault := spec.constraints["default"]; hasDefault {
						raw, found = def, true
					}
				}
				if found {
					if err := setField(fv, raw); err != nil {
						*fields = append(*fields, FieldError{Field: key, Reason: err.Error()})
						continue
					}
				}
			}
		}

		if fieldErr := checkConstraints(fieldName(spec, source, sf.Name), spec, fv); fieldErr != nil {
			*fields = append(*fields, *fieldErr)
		}
	}
}

func fieldName(spec fieldSpec, source Source, structName string) string {
	if key, ok := spec.sourceKeys[source.kind]; ok {
		return key
	}
	return structName
}

// setField coerces raw into fv's Go type via a switch over reflect.Kind.
func setField(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)

	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("must be a boolean")
		}
		fv.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("must be an integer")
		}
		fv.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("must be a non-negative integer")
		}
		fv.SetUint(n)

	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		fv.SetFloat(n)

	case reflect.Slice:
		return setSlice(fv, raw)

	default:
		return fmt.Errorf("unsupported field type %s", fv.Kind())
	}
	return nil
}

// setSlice supports comma-separated scalars, e.g. `torque:"query=ids"`
// bound against "1,2,3" into []int.
func setSlice(fv reflect.Value, raw string) error {
	if raw == "" {
		return nil
	}
	parts := splitCSV(raw)
	out := reflect.MakeSlice(fv.Type(), len(parts), len(parts))
	for i, p := range parts {
		if err := setField(out.Index(i), p); err != nil {
			return err
		}
	}
	fv.Set(out)
	return nil
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
