package analysis

import "time"

// Result is the decoded analysis of one submitted document.
// Every field is optional; nil slices and pointers mean the service omitted them.
type Result struct {
	BasicInfo        *BasicInfo        `json:"basicInfo,omitempty"`
	Entities         []Entity          `json:"entities,omitempty"`
	Tables           []Table           `json:"tables,omitempty"`
	SemanticAnalysis *SemanticAnalysis `json:"semanticAnalysis,omitempty"`
	RawText          *string           `json:"rawText,omitempty"`
	ProcessingTime   string            `json:"processingTime,omitempty"`
}

// BasicInfo holds document metadata reported by the service.
type BasicInfo struct {
	PageCount     *int   `json:"pageCount,omitempty"`
	FileSizeLabel string `json:"fileSizeLabel,omitempty"`
	Title         string `json:"title,omitempty"`
	Author        string `json:"author,omitempty"`
	CreationDate  string `json:"creationDate,omitempty"`
}

// Entity is a named item found in the document.
type Entity struct {
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"` // 0-100
}

// Table is a table extracted from one page.
type Table struct {
	Headers     []string   `json:"headers,omitempty"`
	Rows        [][]string `json:"rows"`
	TableNumber *int       `json:"tableNumber,omitempty"`
	Page        *int       `json:"page,omitempty"`
}

// SemanticAnalysis is the service's high level reading of the document.
type SemanticAnalysis struct {
	DocumentType string   `json:"documentType,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	Language     string   `json:"language,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}

// DecodePath records which decode stage produced a value.
type DecodePath string

const (
	PathNone     DecodePath = ""
	PathPrimary  DecodePath = "primary"
	PathFallback DecodePath = "fallback"
)

// Outcome is the terminal state of one submission: exactly one of Result or Err is set.
type Outcome struct {
	Result   *Result
	Err      *Error
	Path     DecodePath
	Duration time.Duration
}

// Success wraps a decoded result.
func Success(res *Result, path DecodePath) Outcome {
	return Outcome{Result: res, Path: path}
}

// Failure wraps a classified error.
func Failure(err *Error) Outcome {
	return Outcome{Err: err}
}

// OK reports whether the outcome carries a result.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Result != nil
}
