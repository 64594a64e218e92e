package dagforge

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// MimeType is an IANA media type string (e.g. "text/markdown").
type MimeType string

const (
	MimeTypePlainText MimeType = "text/plain"
	MimeTypeMarkdown  MimeType = "text/markdown"
	MimeTypeCSV       MimeType = "text/csv"
	MimeTypeJSON      MimeType = "application/json"
	MimeTypeYAML      MimeType = "application/yaml"
	MimeTypePDF       MimeType = "application/pdf"
	MimeTypeOctet     MimeType = "application/octet-stream"
)

// Attachment is a requirements or reference file uploaded alongside a
// pipeline generation request.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NormalizeMimeType trims, lowercases, and removes parameters from a MIME type.
// Returns empty string if the value is empty or cannot be parsed as a valid MIME type.
func NormalizeMimeType(value string) MimeType {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil || strings.TrimSpace(mediaType) == "" {
		return ""
	}
	return MimeType(strings.ToLower(mediaType))
}

// contentType resolves the attachment's media type: an explicit value wins,
// then the filename extension, then content sniffing, then octet-stream.
func (a Attachment) contentType() MimeType {
	if normalized := NormalizeMimeType(a.ContentType); normalized != "" {
		return normalized
	}
	if ext := filepath.Ext(a.Filename); ext != "" {
		switch strings.ToLower(ext) {
		case ".md", ".markdown":
			return MimeTypeMarkdown
		case ".txt":
			return MimeTypePlainText
		case ".csv":
			return MimeTypeCSV
		case ".json":
			return MimeTypeJSON
		case ".yaml", ".yml":
			return MimeTypeYAML
		default:
			if byExt := NormalizeMimeType(mime.TypeByExtension(ext)); byExt != "" {
				return byExt
			}
		}
	}
	if len(a.Data) > 0 {
		if sniffed := NormalizeMimeType(http.DetectContentType(a.Data)); sniffed != "" {
			return sniffed
		}
	}
	return MimeTypeOctet
}
