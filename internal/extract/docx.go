package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxText reads word/document.xml out of the docx zip container and
// collects the character data of every w:t run, joining paragraphs with
// newlines.
func docxText(raw []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			document = file
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("open docx: word/document.xml missing")
	}

	reader, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("open docx body: %w", err)
	}
	defer reader.Close()

	var (
		builder strings.Builder
		inRun   bool
	)
	decoder := xml.NewDecoder(reader)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}
		switch element := token.(type) {
		case xml.StartElement:
			if element.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			if element.Name.Local == "t" {
				inRun = false
			}
			if element.Name.Local == "p" {
				builder.WriteByte('\n')
			}
		case xml.CharData:
			if inRun {
				builder.Write(element)
			}
		}
	}
	return strings.TrimSpace(builder.String()), nil
}
