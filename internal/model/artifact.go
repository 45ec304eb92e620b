package model

import "time"

// Format is the output image format requested from the engine.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
	FormatTXT Format = "txt"
)

// ValidFormats maps each allowed format to its MIME type.
var ValidFormats = map[Format]string{
	FormatPNG: "image/png",
	FormatSVG: "image/svg+xml",
	FormatTXT: "text/plain; charset=utf-8",
}

// MimeType returns the MIME type for f, or application/octet-stream.
func (f Format) MimeType() string {
	if m, ok := ValidFormats[f]; ok {
		return m
	}
	return "application/octet-stream"
}

// Diagram selects the engine diagram type.
type Diagram string

const (
	DiagramGantt Diagram = "gantt"
	DiagramGraph Diagram = "graph"
)

// ValidDiagrams are the allowed diagram types.
var ValidDiagrams = map[Diagram]bool{
	DiagramGantt: true,
	DiagramGraph: true,
}

// RenderRequest is the engine input built from one plan document.
type RenderRequest struct {
	Format      Format
	Diagram     Diagram
	SourceText  string
	Options     map[string]string
	Fingerprint string
}

// RenderResult is a successful render.
type RenderResult struct {
	Fingerprint string    `json:"fingerprint"`
	MediaBytes  []byte    `json:"-"`
	MimeType    string    `json:"mime_type"`
	Size        int       `json:"size"`
	GeneratedAt time.Time `json:"generated_at"`
	Cached      bool      `json:"cached"`
}

// ArtifactRecord is a persisted render keyed by fingerprint.
type ArtifactRecord struct {
	ID             string     `json:"id"`
	Fingerprint    string     `json:"fingerprint"`
	Format         Format     `json:"format"`
	Diagram        Diagram    `json:"diagram"`
	MimeType       string     `json:"mime_type"`
	Size           int        `json:"size"`
	Media          []byte     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}
