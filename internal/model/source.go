package model

import (
	"net/url"
	"strings"
)

// SourceKind classifies a report URL by shape.
type SourceKind string

const (
	SourceKindPDF     SourceKind = "pdf"
	SourceKindWebsite SourceKind = "website"
	SourceKindUnknown SourceKind = "unknown"
)

// SourceRecord is one company/report to process. Records are loaded from a
// CSV list and are immutable for the duration of a run.
type SourceRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SourceURL    string `json:"source_url"`
	Industry     string `json:"industry"`
	Update       bool   `json:"update"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

// pdfPathMarkers are URL path fragments that indicate a PDF download even
// when the URL does not end in ".pdf" (common for report-hosting CDNs).
var pdfPathMarkers = []string{
	"/pdf/",
	"/download/",
	"format=pdf",
	"type=pdf",
}

// ClassifySource derives the SourceKind from the URL shape alone: extension,
// known path markers, or a bare http(s) host. Classification is deterministic
// and never touches the network.
func ClassifySource(rawURL string) SourceKind {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return SourceKindUnknown
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return SourceKindUnknown
	}

	lower := strings.ToLower(rawURL)
	if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return SourceKindPDF
	}
	for _, marker := range pdfPathMarkers {
		if strings.Contains(lower, marker) {
			return SourceKindPDF
		}
	}

	return SourceKindWebsite
}
