package pdfextract

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"
)

// ExtractText extracts plain text from PDF bytes read from r. A valid PDF
// with no extractable text yields an empty string and nil error; the caller
// decides whether that is a rejection.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	text, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}
	return string(text), nil
}
