package render

import (
	"errors"
	"html/template"
	"io"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/dgallion1/docscope/internal/analysis"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func parse(t *testing.T, frag template.HTML) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(string(frag)))
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	return doc
}

// text returns the concatenated text content of n.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// elements returns every element named tag under n, in document order.
func elements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }
func strp(s string) *string     { return &s }

func section(secs []Section, id string) Section {
	for _, s := range secs {
		if s.ID == id {
			return s
		}
	}
	return Section{}
}

func TestRender_EmptyResultUsesPlaceholders(t *testing.T) {
	r := newRenderer(t)
	for _, res := range []*analysis.Result{nil, {}, {Entities: []analysis.Entity{}, Tables: []analysis.Table{}, RawText: strp("")}} {
		secs := r.Render(res)
		if len(secs) != 5 {
			t.Fatalf("expected 5 sections, got %d", len(secs))
		}
		for _, s := range secs {
			if s.Failed {
				t.Errorf("section %s failed on empty result", s.ID)
			}
			if strings.TrimSpace(string(s.HTML)) == "" {
				t.Errorf("section %s rendered blank", s.ID)
			}
		}
		if got := text(parse(t, section(secs, SectionEntities).HTML)); got != "No entities found" {
			t.Errorf("expected entity placeholder, got %q", got)
		}
		if got := text(parse(t, section(secs, SectionTables).HTML)); got != "No tables found" {
			t.Errorf("expected table placeholder, got %q", got)
		}
		if got := text(parse(t, section(secs, SectionRawText).HTML)); got != "No text was extracted" {
			t.Errorf("expected raw text placeholder, got %q", got)
		}
		basic := text(parse(t, section(secs, SectionBasicInfo).HTML))
		if strings.Count(basic, NotSpecified) != 5 {
			t.Errorf("expected five %q fallbacks, got %q", NotSpecified, basic)
		}
	}
}

func TestBasicInfo_PartialFields(t *testing.T) {
	r := newRenderer(t)
	out, err := r.BasicInfo(&analysis.BasicInfo{PageCount: intp(0), Title: "Annual Report", FileSizeLabel: "1.5 MB"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dds := elements(parse(t, out), "dd")
	if len(dds) != 5 {
		t.Fatalf("expected 5 fields, got %d", len(dds))
	}
	want := []string{"0", "1.5 MB", "Annual Report", NotSpecified, NotSpecified}
	for i, w := range want {
		if got := text(dds[i]); got != w {
			t.Errorf("field %d: expected %q, got %q", i, w, got)
		}
	}
}

func TestEntities(t *testing.T) {
	r := newRenderer(t)
	out, err := r.Entities([]analysis.Entity{
		{Type: "EMAIL", Text: "info@example.com", Confidence: floatp(95)},
		{Type: "DATE", Text: "2024-05-01"},
		{Type: "", Text: "<script>alert(1)</script>", Confidence: floatp(72.5)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := parse(t, out)
	items := elements(doc, "li")
	if len(items) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(items))
	}
	if got := text(items[0]); got != "EMAIL: info@example.com (confidence: 95%)" {
		t.Errorf("unexpected first entity %q", got)
	}
	if got := text(items[1]); strings.Contains(got, "confidence") {
		t.Errorf("expected no confidence for entity without one, got %q", got)
	}
	if !strings.Contains(text(items[2]), "72.5%") {
		t.Errorf("expected fractional confidence, got %q", text(items[2]))
	}
	if !strings.HasPrefix(text(items[2]), NotSpecified+":") {
		t.Errorf("expected missing type fallback, got %q", text(items[2]))
	}
	if len(elements(doc, "script")) != 0 {
		t.Error("entity text was not escaped")
	}
}

func TestTables(t *testing.T) {
	r := newRenderer(t)
	out, err := r.Tables([]analysis.Table{
		{Headers: []string{"Name", "Qty"}, Rows: [][]string{{"apples", "3"}, {"pears", "5"}}, TableNumber: intp(1), Page: intp(2)},
		{Headers: []string{"Empty"}, Rows: [][]string{}},
		{Rows: [][]string{{"x", "y"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := parse(t, out)

	headings := elements(doc, "h4")
	if len(headings) != 3 {
		t.Fatalf("expected 3 table headings, got %d", len(headings))
	}
	wantTitles := []string{"Table 1 - Page 2", "Table 2", "Table 3"}
	for i, w := range wantTitles {
		if got := text(headings[i]); got != w {
			t.Errorf("heading %d: expected %q, got %q", i, w, got)
		}
	}

	tables := elements(doc, "table")
	if len(tables) != 2 {
		t.Fatalf("expected 2 rendered tables, got %d", len(tables))
	}
	if n := len(elements(tables[0], "th")); n != 2 {
		t.Errorf("expected 2 header cells, got %d", n)
	}
	if n := len(elements(tables[0], "td")); n != 4 {
		t.Errorf("expected 4 body cells, got %d", n)
	}
	if n := len(elements(tables[1], "thead")); n != 0 {
		t.Errorf("expected no header row for table without headers, got %d", n)
	}

	items := elements(doc, "div")
	if got := text(items[1]); !strings.Contains(got, "No data in this table") {
		t.Errorf("expected per-table placeholder in second table, got %q", got)
	}
	if strings.Contains(text(items[0]), "No data in this table") || strings.Contains(text(items[2]), "No data in this table") {
		t.Error("placeholder leaked into a table with rows")
	}
}

func TestSemantic(t *testing.T) {
	r := newRenderer(t)
	out, err := r.Semantic(&analysis.SemanticAnalysis{
		DocumentType: "invoice",
		Language:     "en",
		Topics:       []string{"finance", " ", "tax"},
		Summary:      "Total is **42** <script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := parse(t, out)
	tags := elements(doc, "span")
	if len(tags) != 2 || text(tags[0]) != "finance" || text(tags[1]) != "tax" {
		t.Errorf("expected topic tags finance and tax, got %d tags", len(tags))
	}
	if len(elements(doc, "strong")) != 1 {
		t.Error("expected markdown emphasis in summary")
	}
	if len(elements(doc, "script")) != 0 {
		t.Error("summary html was not sanitised")
	}

	out, err = r.Semantic(&analysis.SemanticAnalysis{Topics: []string{}, Summary: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc = parse(t, out)
	if strings.Contains(text(doc), "Topics") {
		t.Error("expected topics block omitted when empty")
	}
	if !strings.Contains(text(doc), "x") {
		t.Error("expected summary text")
	}
}

func TestRawText_Verbatim(t *testing.T) {
	r := newRenderer(t)
	raw := "line one\n  indented <b>not bold</b>"
	out, err := r.RawText(&raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := parse(t, out)
	pres := elements(doc, "pre")
	if len(pres) != 1 {
		t.Fatalf("expected one pre block, got %d", len(pres))
	}
	if got := text(pres[0]); got != raw {
		t.Errorf("expected verbatim text %q, got %q", raw, got)
	}
	if len(elements(doc, "b")) != 0 {
		t.Error("raw text was interpreted as html")
	}
}

func TestRender_SectionFaultIsolation(t *testing.T) {
	r := newRenderer(t)
	r.sections[1].build = func(*analysis.Result) (template.HTML, error) { panic("boom") }
	r.sections[2].build = func(*analysis.Result) (template.HTML, error) { return "", errors.New("bad template") }

	secs := r.Render(&analysis.Result{RawText: strp("hello")})
	if len(secs) != 5 {
		t.Fatalf("expected 5 sections, got %d", len(secs))
	}
	for i, s := range secs {
		wantFailed := i == 1 || i == 2
		if s.Failed != wantFailed {
			t.Errorf("section %s: expected failed=%v, got %v", s.ID, wantFailed, s.Failed)
		}
	}
	if secs[1].HTML != failedHTML {
		t.Errorf("expected failure notice, got %q", secs[1].HTML)
	}
	if got := text(parse(t, section(secs, SectionRawText).HTML)); got != "hello" {
		t.Errorf("expected raw text to survive sibling failure, got %q", got)
	}
}

func TestRender_EndToEndShape(t *testing.T) {
	r := newRenderer(t)
	res, _, derr := analysis.Decode([]byte(`{"success":true,"basicInfo":{"pages":5},"entities":[],"tables":[],"semanticAnalysis":{"topics":[],"summary":"x"},"rawText":"hello"}`), analysis.NamingAuto)
	if derr != nil {
		t.Fatalf("decode: %v", derr)
	}
	secs := r.Render(res)

	basic := elements(parse(t, section(secs, SectionBasicInfo).HTML), "dd")
	if text(basic[0]) != "5" {
		t.Errorf("expected page count 5, got %q", text(basic[0]))
	}
	if got := text(parse(t, section(secs, SectionEntities).HTML)); got != "No entities found" {
		t.Errorf("expected entity placeholder, got %q", got)
	}
	if got := text(parse(t, section(secs, SectionTables).HTML)); got != "No tables found" {
		t.Errorf("expected table placeholder, got %q", got)
	}
	if got := text(parse(t, section(secs, SectionRawText).HTML)); got != "hello" {
		t.Errorf("expected raw text hello, got %q", got)
	}
}

func TestMarkdown(t *testing.T) {
	r := newRenderer(t)
	secs := r.Render(&analysis.Result{
		BasicInfo: &analysis.BasicInfo{PageCount: intp(5)},
		Tables:    []analysis.Table{{Headers: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}},
		RawText:   strp("hello"),
	})
	md, err := r.Markdown("report.pdf", secs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"# report.pdf", "## Basic information", "## Tables", "No entities found", "hello", "|"} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "<table") {
		t.Errorf("expected html to be converted:\n%s", md)
	}
}
