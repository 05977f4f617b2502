// Package extract pulls plain text out of the document formats accepted into
// the document pool. Extraction never fails loudly: unsupported or corrupt
// input yields an empty string.
package extract

import (
	"path/filepath"
	"strings"
)

// Format is the closed set of supported document formats.
type Format int

const (
	Unsupported Format = iota
	Text
	PDF
	DOCX
	XLSX
	CSV
	Source
)

func (f Format) String() string {
	switch f {
	case Text:
		return "text"
	case PDF:
		return "pdf"
	case DOCX:
		return "docx"
	case XLSX:
		return "xlsx"
	case CSV:
		return "csv"
	case Source:
		return "source"
	default:
		return "unsupported"
	}
}

var extFormats = map[string]Format{
	".txt": Text, ".md": Text, ".markdown": Text, ".rst": Text, ".log": Text,
	".pdf":  PDF,
	".docx": DOCX,
	".xlsx": XLSX,
	".csv":  CSV, ".tsv": CSV,

	".go": Source, ".py": Source, ".js": Source, ".ts": Source, ".tsx": Source,
	".jsx": Source, ".java": Source, ".kt": Source, ".rs": Source, ".c": Source,
	".h": Source, ".cpp": Source, ".hpp": Source, ".cs": Source, ".rb": Source,
	".php": Source, ".swift": Source, ".scala": Source, ".sh": Source,
	".sql": Source, ".html": Source, ".css": Source, ".json": Source,
	".yaml": Source, ".yml": Source, ".toml": Source, ".xml": Source,
}

// Detect maps a file name to its format by extension.
func Detect(name string) Format {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(name))]; ok {
		return f
	}
	return Unsupported
}

// Supported reports whether name has a recognized extension.
func Supported(name string) bool {
	return Detect(name) != Unsupported
}
