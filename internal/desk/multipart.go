package desk

import (
	"bytes"
	"fmt"
	"mime/multipart"

	"deskseed/internal/domain"
)

// formField is one text part of a multipart body. Repeated names are allowed.
type formField struct {
	Name  string
	Value string
}

// encodeMultipart writes fields followed by one "Attachments" file part per
// attachment and returns the body and its content type.
func encodeMultipart(fields []formField, attachments []domain.Attachment) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.Name, err)
		}
	}
	for _, a := range attachments {
		part, err := w.CreateFormFile("Attachments", a.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %s: %w", a.Name, err)
		}
		if _, err := part.Write(a.Content); err != nil {
			return nil, "", fmt.Errorf("write file part %s: %w", a.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
