package issuecode

import (
	"strings"

	"github.com/pkg/errors"
)

// setInBody sets value at a dotted path, creating the intermediate objects. A segment ending
// in "[]" is an array: in the middle of the path a new object is appended to it, at the end
// the value itself is appended. Scalar leaves can only be set once.
func setInBody(body map[string]interface{}, field, value string) error {
	parts := strings.Split(field, ".")
	scope := body

	for _, part := range parts[:len(parts)-1] {
		if name, isArray := arraySegment(part); isArray {
			existing := scope[name]
			array, ok := existing.([]interface{})
			if existing != nil && !ok {
				return errors.Errorf("Expected array when setting %q", field)
			}
			child := map[string]interface{}{}
			scope[name] = append(array, child)
			scope = child
			continue
		}

		existing, present := scope[part]
		if !present {
			child := map[string]interface{}{}
			scope[part] = child
			scope = child
			continue
		}
		child, ok := existing.(map[string]interface{})
		if !ok {
			return errors.Errorf("Expected object when setting %q", field)
		}
		scope = child
	}

	last := parts[len(parts)-1]
	if name, isArray := arraySegment(last); isArray {
		existing := scope[name]
		array, ok := existing.([]interface{})
		if existing != nil && !ok {
			return errors.Errorf("Expected array when setting %q", field)
		}
		scope[name] = append(array, value)
		return nil
	}

	if _, present := scope[last]; present {
		return errors.Errorf("Cannot set field multiple times: %q", field)
	}
	scope[last] = value
	return nil
}

// getInBody reads every string at a dotted path, following "[]" segments into each element.
// Missing and null values are skipped.
func getInBody(body map[string]interface{}, field string) ([]string, error) {
	parts := strings.Split(field, ".")
	scopes := []map[string]interface{}{body}

	for _, part := range parts[:len(parts)-1] {
		name, isArray := arraySegment(part)
		var next []map[string]interface{}
		for _, scope := range scopes {
			value := scope[name]
			if value == nil {
				continue
			}
			if !isArray {
				object, ok := value.(map[string]interface{})
				if !ok {
					return nil, errors.Errorf("Expected object when reading %q", field)
				}
				next = append(next, object)
				continue
			}
			array, ok := value.([]interface{})
			if !ok {
				return nil, errors.Errorf("Expected array when reading %q", field)
			}
			for _, element := range array {
				object, ok := element.(map[string]interface{})
				if !ok {
					return nil, errors.Errorf("Expected object when reading %q", field)
				}
				next = append(next, object)
			}
		}
		scopes = next
	}

	name, isArray := arraySegment(parts[len(parts)-1])
	var leaves []interface{}
	for _, scope := range scopes {
		value := scope[name]
		if value == nil {
			continue
		}
		if !isArray {
			leaves = append(leaves, value)
			continue
		}
		array, ok := value.([]interface{})
		if !ok {
			return nil, errors.Errorf("Expected array when reading %q", field)
		}
		leaves = append(leaves, array...)
	}

	values := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		s, ok := leaf.(string)
		if !ok {
			return nil, errors.Errorf("Expected string when reading %q", field)
		}
		values = append(values, s)
	}
	return values, nil
}

func arraySegment(part string) (string, bool) {
	if strings.HasSuffix(part, "[]") {
		return strings.TrimSuffix(part, "[]"), true
	}
	return part, false
}
