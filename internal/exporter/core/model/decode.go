package model

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// fieldReporter is implemented by payload sections that drop mistyped fields.
type fieldReporter interface {
	invalidFields() []string
}

// decodeFields decodes the JSON object data into the struct v points to, one field at
// a time. A field whose value does not decode into its Go type is left at its zero
// value and its JSON name is returned, nested sections as "section.field". Only data
// that is not an object at all is an error.
func decodeFields(data []byte, v any) ([]string, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var invalid []string
	rv := reflect.ValueOf(v).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if !f.IsExported() || name == "" || name == "-" {
			continue
		}
		msg, ok := raw[name]
		if !ok {
			continue
		}

		fv := rv.Field(i)
		if err := json.Unmarshal(msg, fv.Addr().Interface()); err != nil {
			fv.SetZero()
			invalid = append(invalid, name)
			continue
		}
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			continue
		}
		if r, ok := fv.Interface().(fieldReporter); ok {
			for _, nested := range r.invalidFields() {
				invalid = append(invalid, name+"."+nested)
			}
		}
	}
	return invalid, nil
}
