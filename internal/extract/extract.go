// Package extract pulls plain text out of uploaded artifacts for
// full-text indexing. Extraction is best-effort by contract: a format we
// cannot read, or a corrupt file, yields empty text and never fails the
// surrounding record creation.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Text extracts plain text from the file at path, dispatching on the
// extension. Unsupported and unreadable files yield "".
func Text(path string) string {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = pdfText(path)
	case ".txt":
		text, err = txtText(path)
	case ".docx":
		text, err = docxText(path)
	default:
		return ""
	}
	if err != nil {
		return ""
	}
	return text
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func txtText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// docxText reads word/document.xml from the docx zip container and
// collects the text runs (<w:t>), inserting newlines at paragraph ends.
func docxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", nil
	}

	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var b strings.Builder
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				var run string
				if err := decoder.DecodeElement(&run, &el); err == nil {
					b.WriteString(run)
				}
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}
