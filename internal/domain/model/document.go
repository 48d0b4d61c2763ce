package model

import (
	"path/filepath"
	"strings"
)

// documentTypes lists the accepted input extensions and their MIME types.
var documentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// IsSupportedDocument reports whether path has an accepted extension (case-insensitive).
func IsSupportedDocument(path string) bool {
	_, ok := documentTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// MIMEType returns the MIME type for a supported document, or "" otherwise.
func MIMEType(path string) string {
	return documentTypes[strings.ToLower(filepath.Ext(path))]
}

// IsImage reports whether path is a supported image.
func IsImage(path string) bool {
	return strings.HasPrefix(MIMEType(path), "image/")
}
