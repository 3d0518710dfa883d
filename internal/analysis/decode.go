package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docscope/internal/document"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PreviewLength is the number of characters of an unparseable body kept for diagnostics.
const PreviewLength = 100

// Naming selects which key convention is accepted for basicInfo, tables
// and semanticAnalysis fields.
type Naming string

const (
	NamingAuto  Naming = "auto"
	NamingCamel Naming = "camel"
	NamingSnake Naming = "snake"
)

// ParseNaming parses a naming mode; the empty string means auto.
func ParseNaming(s string) (Naming, error) {
	switch n := Naming(strings.ToLower(strings.TrimSpace(s))); n {
	case "", NamingAuto:
		return NamingAuto, nil
	case NamingCamel, NamingSnake:
		return n, nil
	}
	return "", fmt.Errorf("unknown field naming %q (want auto, camel or snake)", s)
}

// keys returns the accepted keys in lookup order. Auto prefers camelCase.
func (n Naming) keys(camel, snake []string) []string {
	switch n {
	case NamingCamel:
		return camel
	case NamingSnake:
		return snake
	}
	return append(append([]string{}, camel...), snake...)
}

// Decode interprets a raw response body from the analysis service.
//
// The body is first parsed as JSON as-is. Only if that fails is it treated as
// text: a UTF-8 BOM and surrounding whitespace are removed, an empty remainder
// is an EmptyResponse, and a remainder that still does not parse is an
// UnexpectedResponseFormat whose Detail carries a short preview of the body.
// A parsed value is then checked for an error marker, for null, and against
// the result schema.
func Decode(body []byte, naming Naming) (*Result, DecodePath, *Error) {
	path := PathPrimary
	var v json.RawMessage
	if err := json.Unmarshal(body, &v); err != nil {
		path = PathFallback
		text := string(bytes.TrimPrefix(body, utf8BOM))
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, path, NewError(KindEmptyResponse).Wrap(err)
		}
		if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
			return nil, path, NewError(KindUnexpectedFormat).
				WithDetail("response preview: " + Preview(text, PreviewLength)).
				Wrap(err)
		}
	}
	res, aerr := interpret(v, naming)
	return res, path, aerr
}

// Preview returns at most n characters of s.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func interpret(v json.RawMessage, naming Naming) (*Result, *Error) {
	v = bytes.TrimSpace(v)
	if !truthy(v) {
		return nil, NewError(KindEmptyResult)
	}
	if v[0] != '{' {
		return nil, NewError(KindMalformedResult).WithDetail("top-level value is not an object: " + Preview(string(v), PreviewLength))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(v, &fields); err != nil {
		return nil, NewError(KindMalformedResult).Wrap(err)
	}
	if raw, ok := fields["error"]; ok && truthy(raw) {
		msg := errorText(raw)
		if strings.TrimSpace(msg) == "" {
			return nil, NewError(KindServerReported)
		}
		return nil, &Error{Kind: KindServerReported, Message: msg}
	}
	if raw, ok := fields["success"]; ok && string(raw) == "false" {
		return nil, NewError(KindServerReported)
	}
	res, err := decodeResult(fields, naming)
	if err != nil {
		return nil, NewError(KindMalformedResult).WithDetail(err.Error()).Wrap(err)
	}
	return res, nil
}

// truthy follows the loose truthiness the service's clients rely on:
// null, false, 0 and "" are false, everything else is true.
func truthy(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	switch {
	case s == "", s == "null", s == "false", s == `""`:
		return false
	case s[0] == '-' || (s[0] >= '0' && s[0] <= '9'):
		f, err := strconv.ParseFloat(s, 64)
		return err != nil || f != 0
	}
	return true
}

func errorText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func decodeResult(fields map[string]json.RawMessage, naming Naming) (*Result, error) {
	res := &Result{}

	if raw := lookup(fields, "basicInfo", "basic_info"); raw != nil {
		bi, err := decodeBasicInfo(raw, naming)
		if err != nil {
			return nil, fmt.Errorf("basicInfo: %w", err)
		}
		res.BasicInfo = bi
	}
	if raw := lookup(fields, "entities"); raw != nil {
		entities, err := decodeEntities(raw)
		if err != nil {
			return nil, fmt.Errorf("entities: %w", err)
		}
		res.Entities = entities
	}
	if raw := lookup(fields, "tables"); raw != nil {
		tables, err := decodeTables(raw, naming)
		if err != nil {
			return nil, fmt.Errorf("tables: %w", err)
		}
		res.Tables = tables
	}
	if raw := lookup(fields, "semanticAnalysis", "semantic_analysis"); raw != nil {
		sa, err := decodeSemantic(raw, naming)
		if err != nil {
			return nil, fmt.Errorf("semanticAnalysis: %w", err)
		}
		res.SemanticAnalysis = sa
	}
	if raw := lookup(fields, "rawText", "raw_text"); raw != nil {
		text, err := scalarText(raw)
		if err != nil {
			return nil, fmt.Errorf("rawText: %w", err)
		}
		res.RawText = &text
	}
	if raw := lookup(fields, "processingTime", "processing_time"); raw != nil {
		text, err := scalarText(raw)
		if err != nil {
			return nil, fmt.Errorf("processingTime: %w", err)
		}
		res.ProcessingTime = text
	}
	return res, nil
}

func decodeBasicInfo(raw json.RawMessage, naming Naming) (*BasicInfo, error) {
	m, err := object(raw)
	if err != nil {
		return nil, err
	}
	bi := &BasicInfo{}
	if v := lookup(m, naming.keys([]string{"pageCount", "pages"}, []string{"page_count", "pages"})...); v != nil {
		n, err := count(v)
		if err != nil {
			return nil, fmt.Errorf("page count: %w", err)
		}
		bi.PageCount = &n
	}
	if v := lookup(m, naming.keys([]string{"fileSize", "fileSizeLabel"}, []string{"file_size", "file_size_label"})...); v != nil {
		if bi.FileSizeLabel, err = sizeLabel(v); err != nil {
			return nil, fmt.Errorf("file size: %w", err)
		}
	}
	if v := lookup(m, "title"); v != nil {
		if bi.Title, err = scalarText(v); err != nil {
			return nil, fmt.Errorf("title: %w", err)
		}
	}
	if v := lookup(m, "author"); v != nil {
		if bi.Author, err = scalarText(v); err != nil {
			return nil, fmt.Errorf("author: %w", err)
		}
	}
	if v := lookup(m, naming.keys([]string{"creationDate"}, []string{"creation_date"})...); v != nil {
		if bi.CreationDate, err = scalarText(v); err != nil {
			return nil, fmt.Errorf("creation date: %w", err)
		}
	}
	return bi, nil
}

func decodeEntities(raw json.RawMessage) ([]Entity, error) {
	items, err := array(raw)
	if err != nil {
		return nil, err
	}
	entities := make([]Entity, 0, len(items))
	for i, item := range items {
		m, err := object(item)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		var e Entity
		if v := lookup(m, "type"); v != nil {
			if e.Type, err = scalarText(v); err != nil {
				return nil, fmt.Errorf("entity %d type: %w", i, err)
			}
		}
		if v := lookup(m, "text"); v != nil {
			if e.Text, err = scalarText(v); err != nil {
				return nil, fmt.Errorf("entity %d text: %w", i, err)
			}
		}
		if v := lookup(m, "confidence"); v != nil {
			var c float64
			if err := json.Unmarshal(v, &c); err != nil {
				return nil, fmt.Errorf("entity %d confidence: expected number", i)
			}
			c = ClampConfidence(c)
			e.Confidence = &c
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// ClampConfidence limits a confidence score to the 0-100 range.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func decodeTables(raw json.RawMessage, naming Naming) ([]Table, error) {
	items, err := array(raw)
	if err != nil {
		return nil, err
	}
	tables := make([]Table, 0, len(items))
	for i, item := range items {
		m, err := object(item)
		if err != nil {
			return nil, fmt.Errorf("table %d: %w", i, err)
		}
		var t Table
		if v := lookup(m, "headers"); v != nil {
			if t.Headers, err = textList(v); err != nil {
				return nil, fmt.Errorf("table %d headers: %w", i, err)
			}
		}
		if v := lookup(m, "rows"); v != nil {
			rows, err := array(v)
			if err != nil {
				return nil, fmt.Errorf("table %d rows: %w", i, err)
			}
			t.Rows = make([][]string, 0, len(rows))
			for j, row := range rows {
				cells, err := textList(row)
				if err != nil {
					return nil, fmt.Errorf("table %d row %d: %w", i, j, err)
				}
				t.Rows = append(t.Rows, cells)
			}
		}
		if v := lookup(m, naming.keys([]string{"tableNumber"}, []string{"table_number"})...); v != nil {
			n, err := count(v)
			if err != nil {
				return nil, fmt.Errorf("table %d number: %w", i, err)
			}
			t.TableNumber = &n
		}
		if v := lookup(m, "page"); v != nil {
			n, err := count(v)
			if err != nil {
				return nil, fmt.Errorf("table %d page: %w", i, err)
			}
			t.Page = &n
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func decodeSemantic(raw json.RawMessage, naming Naming) (*SemanticAnalysis, error) {
	m, err := object(raw)
	if err != nil {
		return nil, err
	}
	sa := &SemanticAnalysis{}
	if v := lookup(m, naming.keys([]string{"documentType"}, []string{"document_type"})...); v != nil {
		if sa.DocumentType, err = scalarText(v); err != nil {
			return nil, fmt.Errorf("document type: %w", err)
		}
	}
	if v := lookup(m, "topics"); v != nil {
		if sa.Topics, err = textList(v); err != nil {
			return nil, fmt.Errorf("topics: %w", err)
		}
	}
	if v := lookup(m, "language"); v != nil {
		if sa.Language, err = scalarText(v); err != nil {
			return nil, fmt.Errorf("language: %w", err)
		}
	}
	if v := lookup(m, "summary"); v != nil {
		if sa.Summary, err = scalarText(v); err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
	}
	return sa, nil
}

// lookup returns the first non-null value among keys, or nil.
func lookup(m map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := m[k]; ok && string(bytes.TrimSpace(v)) != "null" {
			return v
		}
	}
	return nil
}

func object(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, fmt.Errorf("expected object, got %s", kindName(raw))
	}
	return m, nil
}

func array(raw json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected array, got %s", kindName(raw))
	}
	return items, nil
}

// scalarText renders a string, number or boolean as text. Null is empty.
func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("expected text, got %s", kindName(raw))
	}
	return string(raw), nil
}

func textList(raw json.RawMessage) ([]string, error) {
	items, err := array(raw)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := scalarText(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// count decodes a non-negative integer. Integral floats such as 5.0 are accepted.
func count(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("expected number, got %s", kindName(raw))
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("expected non-negative integer, got %v", f)
	}
	return int(f), nil
}

// sizeLabel accepts either a preformatted label or a byte count.
func sizeLabel(raw json.RawMessage) (string, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		// Out of range for a byte count: show what the service sent.
		if n < 0 || n >= math.MaxInt64 {
			return string(bytes.TrimSpace(raw)), nil
		}
		return document.FormatSize(int64(n)), nil
	}
	return scalarText(raw)
}

func kindName(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	}
	return "number"
}
