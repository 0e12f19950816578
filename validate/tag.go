package validate

import "strings"

const tagName = "torque"

var sourceKindNames = map[string]bool{
	"path": true, "query": true, "header": true, "form": true,
}

// fieldSpec is a parsed `torque` struct tag: which source key each
// source kind reads this field from, plus its constraint list.
type fieldSpec struct {
	sourceKeys  map[string]string
	constraints map[string]string
	order       []string // constraint names in tag order, for stable error messages
}

// parseTag splits a `torque:"query=page,default=1,min=1"` style tag into
// its source-key bindings and its constraints. Bare words (e.g.
// "required") are stored as constraints with an empty value.
func parseTag(tag string) fieldSpec {
	spec := fieldSpec{
		sourceKeys:  map[string]string{},
		constraints: map[string]string{},
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if hasValue && sourceKindNames[key] {
			spec.sourceKeys[key] = value
			continue
		}

		spec.constraints[key] = value
		spec.order = append(spec.order, key)
	}

	return spec
}
