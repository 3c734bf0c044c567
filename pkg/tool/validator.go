package tool

import "fmt"

// DefaultValidator enforces required fields and primitive property types.
type DefaultValidator struct{}

// Validate implements Validator.
func (DefaultValidator) Validate(params map[string]interface{}, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := params[key]; !ok {
			return fmt.Errorf("missing required field %q", key)
		}
	}
	for key, raw := range schema.Properties {
		value, present := params[key]
		if !present || value == nil {
			continue
		}
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		want, _ := prop["type"].(string)
		if want != "" && !matchesType(want, value) {
			return fmt.Errorf("field %q must be %s", key, want)
		}
	}
	return nil
}

func matchesType(want string, value interface{}) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		switch value.(type) {
		case []interface{}, []string:
			return true
		}
		return false
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	default:
		return true
	}
}
