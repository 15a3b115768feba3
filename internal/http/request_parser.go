package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

const maxBodyBytes = 64 << 10

var errBadBody = errors.New("malformed request body")

// decodeBody fills dst from a JSON body, or from form fields when the page
// posts a form. An empty body leaves dst untouched.
//
// Form values are mapped onto the JSON field names of dst and typed by
// the destination field, so both encodings share one decoder.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errBadBody)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return fmt.Errorf("%w: %v", errBadBody, err)
		}
		body, err = formToJSON(form, dst)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadBody, err)
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// formToJSON encodes form values for the struct dst points to. Integer
// fields get numbers, everything else strings; keys without a matching
// field are dropped.
func formToJSON(form url.Values, dst any) ([]byte, error) {
	fields, err := formFields(dst)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, len(form))
	for k := range form {
		kind, ok := fields[k]
		if !ok {
			continue
		}
		v := sanitizeInput(form.Get(k))
		if v == "" {
			continue
		}
		switch kind {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: %q is not a number", k, v)
			}
			m[k] = n
		default:
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// formFields maps the JSON names of dst's fields to their underlying kind.
func formFields(dst any) (map[string]reflect.Kind, error) {
	t := reflect.TypeOf(dst)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.New("form body not supported for this endpoint")
	}
	fields := make(map[string]reflect.Kind, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if !f.IsExported() || name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		fields[name] = ft.Kind()
	}
	return fields, nil
}

// wantsHTML reports whether the request came from a page form rather than
// an API client.
func wantsHTML(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") &&
		!strings.Contains(r.Header.Get("Accept"), "application/json")
}
