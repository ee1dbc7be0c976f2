// Package docxfixture builds minimal DOCX archives for tests.
package docxfixture

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"os"
	"strings"
)

// Build returns a DOCX whose body holds one w:p per paragraph.
func Build(paragraphs ...string) []byte {
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t xml:space=\"preserve\">")
		_ = xml.EscapeText(&body, []byte(p))
		body.WriteString("</w:t></w:r></w:p>")
	}
	return BuildRaw(body.String())
}

// BuildRaw wraps raw body XML in a document part.
func BuildRaw(bodyXML string) []byte {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	ct, _ := w.Create("[Content_Types].xml")
	ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))

	doc, _ := w.Create("word/document.xml")
	doc.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		bodyXML + `</w:body></w:document>`))

	w.Close()
	return buf.Bytes()
}

// WriteFile writes Build(paragraphs...) to path.
func WriteFile(path string, paragraphs ...string) error {
	return os.WriteFile(path, Build(paragraphs...), 0o644)
}
