package http

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

const defaultFileContentType = "application/octet-stream"

// File is a form value sent as a file part of a multipart body.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

func asFile(v any) (File, bool) {
	switch f := v.(type) {
	case File:
		return f, true
	case *File:
		if f != nil {
			return *f, true
		}
	}
	return File{}, false
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(fields []formField) (*EncodedBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		for _, v := range f.values {
			if err := writePart(w, f.name, v); err != nil {
				return nil, newSerializationError(FormatFormData, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, newSerializationError(FormatFormData, err)
	}

	return &EncodedBody{
		Format:      FormatFormData,
		ContentType: w.FormDataContentType(),
		Data:        buf.Bytes(),
	}, nil
}

func writePart(w *multipart.Writer, name string, v any) error {
	file, ok := asFile(v)
	if !ok {
		return w.WriteField(name, formText(v))
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultFileContentType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(file.Name)))
	h.Set(HeaderContentType, contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Content)
	return err
}
