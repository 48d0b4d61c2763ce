package adapter

import "context"

// Document is the opaque handle of an uploaded file.
type Document struct {
	Name        string // provider-side identifier
	URI         string
	MIMEType    string
	DisplayName string
}

// DocumentAI is the port for the external document-understanding service.
type DocumentAI interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// UploadDocument sends a local file and returns its handle.
	UploadDocument(ctx context.Context, path, displayName string) (Document, error)

	// Generate runs the prompt against an uploaded document and returns the text.
	Generate(ctx context.Context, doc Document, prompt string) (string, error)

	// GenerateText runs a text-only prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)
}
