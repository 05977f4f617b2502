package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// MaxFileSize caps the bytes read from a single pool file.
const MaxFileSize = 50 << 20

// Extract extracts plain text from raw bytes of the given format.
// It returns "" for unsupported formats and for any extraction failure.
func Extract(format Format, raw []byte) (text string) {
	defer func() {
		// The PDF parser panics on some malformed inputs.
		if r := recover(); r != nil {
			slog.Warn("text extraction panicked",
				slog.String("format", format.String()),
				slog.Any("panic", r))
			text = ""
		}
	}()

	var err error
	switch format {
	case Text, Source:
		text = plain(raw)
	case CSV:
		text, err = fromCSV(raw)
	case PDF:
		text, err = fromPDF(raw)
	case DOCX:
		text, err = fromDOCX(raw)
	case XLSX:
		text, err = fromXLSX(raw)
	default:
		return ""
	}
	if err != nil {
		slog.Warn("text extraction failed",
			slog.String("format", format.String()),
			slog.String("error", err.Error()))
		return ""
	}
	return strings.TrimSpace(text)
}

// File reads and extracts a file from disk, detecting its format by name.
func File(path string) string {
	format := Detect(path)
	if format == Unsupported {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() > MaxFileSize {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("read document failed", slog.String("path", path), slog.String("error", err.Error()))
		return ""
	}
	return Extract(format, raw)
}

func plain(raw []byte) string {
	if !utf8.Valid(raw) {
		return strings.ToValidUTF8(string(raw), "")
	}
	return string(raw)
}

func fromCSV(raw []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var sb strings.Builder
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(strings.Join(rec, " | "))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func fromPDF(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}
	content, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fromDOCX walks word/document.xml, keeping <w:t> text and breaking lines
// at paragraph ends.
func fromDOCX(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", os.ErrNotExist
	}

	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func fromXLSX(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			continue
		}
		sb.WriteString("# " + sheet + "\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " | "))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
