package model

import (
	"strings"
	"time"
)

// Format is the declared source format of an uploaded document.
type Format string

const (
	FormatPDF  Format = "PDF"
	FormatDOCX Format = "DOCX"
)

// ParseFormat normalizes a declared format ("pdf", "Docx", ...). The second return value
// reports whether the format is one the rendering pipeline supports.
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FormatPDF, FormatDOCX:
		return f, true
	}
	return f, false
}

// FormatFromFilename infers the format from an upload's extension.
func FormatFromFilename(name string) (Format, bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", false
	}
	switch strings.ToLower(name[i+1:]) {
	case "pdf":
		return FormatPDF, true
	case "docx", "doc":
		return FormatDOCX, true
	}
	return Format(strings.ToUpper(name[i+1:])), false
}

// CopyrightStatus tags the licensing situation of a document.
type CopyrightStatus string

const (
	CopyrightPublicDomain     CopyrightStatus = "PUBLIC_DOMAIN"
	CopyrightOpenLicense      CopyrightStatus = "OPEN_LICENSE"
	CopyrightInternalUse      CopyrightStatus = "INTERNAL_USE"
	CopyrightAuthorPermission CopyrightStatus = "AUTHOR_PERMISSION"
	CopyrightUnknown          CopyrightStatus = "UNKNOWN"
)

// Valid reports whether c is one of the known copyright tags.
func (c CopyrightStatus) Valid() bool {
	switch c {
	case CopyrightPublicDomain, CopyrightOpenLicense, CopyrightInternalUse,
		CopyrightAuthorPermission, CopyrightUnknown:
		return true
	}
	return false
}

// DocumentStatus tracks a document through ingestion and deletion.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
	StatusDeleting   DocumentStatus = "deleting"
)

// DefaultTotalCopies is the loan capacity used when an upload does not specify one.
const DefaultTotalCopies = 3

// Document is an uploaded source file and the page set rendered from it.
// TotalPages stays 0 until ingestion commits, together with Status=ready.
type Document struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	FileName        string          `json:"file_name"`
	FilePath        string          `json:"-"`
	Format          Format          `json:"file_type"`
	TotalPages      int             `json:"total_pages"`
	TotalCopies     int             `json:"total_copies"`
	CopyrightStatus CopyrightStatus `json:"copyright_status"`
	Status          DocumentStatus  `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Servable reports whether pages of the document may be delivered.
func (d *Document) Servable() bool {
	return d.Status == StatusReady && d.TotalPages > 0
}
