package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strings"
)

// EncodedBody is the wire representation of a pending request body.
type EncodedBody struct {
	Format BodyFormat
	// ContentType is the content type implied by the encoding. For multipart payloads it
	// carries the boundary parameter.
	ContentType string
	Data        []byte
}

// Reader returns a fresh reader over the encoded bytes.
func (b *EncodedBody) Reader() io.Reader {
	return bytes.NewReader(b.Data)
}

// String returns the encoded payload as text.
func (b *EncodedBody) String() string {
	return string(b.Data)
}

// Len returns the payload size in bytes.
func (b *EncodedBody) Len() int {
	return len(b.Data)
}

// EncodeBody converts body into its wire form for format. Strings and byte slices are sent
// unchanged by FormatString and FormatJSON; structured values are serialized as JSON. The form
// formats require a key/value object and reject raw strings.
func EncodeBody(body any, format BodyFormat) (*EncodedBody, error) {
	if body == nil {
		return nil, NewEmptyRequestBodyError()
	}

	switch format {
	case FormatFormData:
		fields, err := formFields(format, body)
		if err != nil {
			return nil, err
		}
		return encodeMultipart(fields)
	case FormatURLEncoded:
		fields, err := formFields(format, body)
		if err != nil {
			return nil, err
		}
		return encodeURLEncoded(fields)
	case FormatJSON:
		data, err := textOrJSON(format, body)
		if err != nil {
			return nil, err
		}
		return &EncodedBody{Format: format, ContentType: ContentTypeJSON, Data: data}, nil
	default:
		data, err := textOrJSON(format, body)
		if err != nil {
			return nil, err
		}
		return &EncodedBody{Format: FormatString, ContentType: ContentTypeText, Data: data}, nil
	}
}

func textOrJSON(format BodyFormat, body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, newSerializationError(format, err)
		}
		return data, nil
	}
}

// formField is one key of a structured body with every value recorded for it.
type formField struct {
	name   string
	values []any
}

// formFields flattens a key/value body into fields ordered by key.
func formFields(format BodyFormat, body any) ([]formField, error) {
	switch v := body.(type) {
	case string, []byte:
		return nil, NewInvalidRequestBodyFormatError(format, nil)
	case url.Values:
		return stringSliceFields(v), nil
	case map[string][]string:
		return stringSliceFields(v), nil
	case map[string]string:
		fields := make([]formField, 0, len(v))
		for _, k := range sortedKeys(v) {
			fields = append(fields, formField{name: k, values: []any{v[k]}})
		}
		return fields, nil
	case map[string]any:
		fields := make([]formField, 0, len(v))
		for _, k := range sortedKeys(v) {
			fields = append(fields, formField{name: k, values: expandValue(v[k])})
		}
		return fields, nil
	}

	kind := reflect.Indirect(reflect.ValueOf(body)).Kind()
	if kind != reflect.Struct && kind != reflect.Map {
		return nil, newUnsupportedBodyError(format, body)
	}

	// Structs and foreign map types go through their JSON field names.
	data, err := json.Marshal(body)
	if err != nil {
		return nil, newSerializationError(format, err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, newUnsupportedBodyError(format, body)
	}
	return formFields(format, obj)
}

func stringSliceFields(m map[string][]string) []formField {
	fields := make([]formField, 0, len(m))
	for _, k := range sortedKeys(m) {
		values := make([]any, 0, len(m[k]))
		for _, s := range m[k] {
			values = append(values, s)
		}
		fields = append(fields, formField{name: k, values: values})
	}
	return fields
}

// expandValue turns string slices into repeated values; everything else is a single value.
func expandValue(v any) []any {
	switch value := v.(type) {
	case []any:
		return value
	case []string:
		out := make([]any, 0, len(value))
		for _, s := range value {
			out = append(out, s)
		}
		return out
	case []File:
		out := make([]any, 0, len(value))
		for _, f := range value {
			out = append(out, f)
		}
		return out
	default:
		return []any{v}
	}
}

// formText renders a non-file form value as text.
func formText(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	case fmt.Stringer:
		return value.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(value)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(data)
	}
}

func encodeURLEncoded(fields []formField) (*EncodedBody, error) {
	var b strings.Builder
	for _, f := range fields {
		for _, v := range f.values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(f.name))
			b.WriteByte('=')
			if file, ok := asFile(v); ok {
				b.WriteString(url.QueryEscape(file.Name))
				continue
			}
			b.WriteString(url.QueryEscape(formText(v)))
		}
	}
	return &EncodedBody{Format: FormatURLEncoded, ContentType: ContentTypeURLEncoded, Data: []byte(b.String())}, nil
}
