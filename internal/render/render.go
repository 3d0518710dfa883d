// Package render turns an analysis result into independent HTML sections.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/dgallion1/docscope/internal/analysis"
)

//go:embed templates/*.html
var templateFS embed.FS

// NotSpecified is shown for any missing scalar field.
const NotSpecified = "Not specified"

// Section IDs in display order.
const (
	SectionBasicInfo = "basic_info"
	SectionEntities  = "entities"
	SectionTables    = "tables"
	SectionSemantic  = "semantic"
	SectionRawText   = "raw_text"
)

const failedHTML = template.HTML(`<p class="section-error">This section could not be displayed.</p>`)

// Section is one rendered region of the result view.
type Section struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	HTML   template.HTML `json:"html"`
	Failed bool          `json:"failed,omitempty"`
}

type builder struct {
	id    string
	title string
	build func(*analysis.Result) (template.HTML, error)
}

// Renderer renders results. It is safe for concurrent use.
type Renderer struct {
	tmpl     *template.Template
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	conv     *converter.Converter
	log      *slog.Logger
	sections []builder
}

func New(log *slog.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r := &Renderer{
		tmpl:   tmpl,
		md:     goldmark.New(),
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		log: log.With("component", "render"),
	}
	r.sections = []builder{
		{SectionBasicInfo, "Basic information", func(res *analysis.Result) (template.HTML, error) { return r.BasicInfo(res.BasicInfo) }},
		{SectionEntities, "Entities", func(res *analysis.Result) (template.HTML, error) { return r.Entities(res.Entities) }},
		{SectionTables, "Tables", func(res *analysis.Result) (template.HTML, error) { return r.Tables(res.Tables) }},
		{SectionSemantic, "Semantic analysis", func(res *analysis.Result) (template.HTML, error) { return r.Semantic(res.SemanticAnalysis) }},
		{SectionRawText, "Extracted text", func(res *analysis.Result) (template.HTML, error) { return r.RawText(res.RawText) }},
	}
	return r, nil
}

// Render renders every section. A section that fails or panics is replaced
// by an error notice; the other sections are unaffected.
func (r *Renderer) Render(res *analysis.Result) []Section {
	if res == nil {
		res = &analysis.Result{}
	}
	out := make([]Section, 0, len(r.sections))
	for _, b := range r.sections {
		out = append(out, r.safe(b, res))
	}
	return out
}

func (r *Renderer) safe(b builder, res *analysis.Result) (sec Section) {
	sec = Section{ID: b.id, Title: b.title}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("section render panicked", "section", b.id, "panic", p)
			sec.HTML, sec.Failed = failedHTML, true
		}
	}()
	html, err := b.build(res)
	if err != nil {
		r.log.Error("section render failed", "section", b.id, "error", err)
		sec.HTML, sec.Failed = failedHTML, true
		return sec
	}
	sec.HTML = html
	return sec
}

type basicInfoView struct {
	Pages, FileSize, Title, Author, Created string
}

// BasicInfo renders document metadata; every missing field reads NotSpecified.
func (r *Renderer) BasicInfo(bi *analysis.BasicInfo) (template.HTML, error) {
	v := basicInfoView{NotSpecified, NotSpecified, NotSpecified, NotSpecified, NotSpecified}
	if bi != nil {
		if bi.PageCount != nil {
			v.Pages = strconv.Itoa(*bi.PageCount)
		}
		v.FileSize = orNotSpecified(bi.FileSizeLabel)
		v.Title = orNotSpecified(bi.Title)
		v.Author = orNotSpecified(bi.Author)
		v.Created = orNotSpecified(bi.CreationDate)
	}
	return r.execute(SectionBasicInfo, v)
}

type entityView struct {
	Type, Text, Confidence string
}

// Entities renders one item per entity, or a placeholder when there are none.
func (r *Renderer) Entities(entities []analysis.Entity) (template.HTML, error) {
	views := make([]entityView, 0, len(entities))
	for _, e := range entities {
		v := entityView{Type: orNotSpecified(e.Type), Text: e.Text}
		if e.Confidence != nil {
			v.Confidence = strconv.FormatFloat(*e.Confidence, 'f', -1, 64)
		}
		views = append(views, v)
	}
	return r.execute(SectionEntities, views)
}

type tableView struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Tables renders each table under its own heading. A table with no rows
// gets its own placeholder; an empty collection gets a single placeholder.
func (r *Renderer) Tables(tables []analysis.Table) (template.HTML, error) {
	views := make([]tableView, 0, len(tables))
	for i, t := range tables {
		views = append(views, tableView{Title: TableTitle(i, t), Headers: t.Headers, Rows: t.Rows})
	}
	return r.execute(SectionTables, views)
}

// TableTitle labels a table by its reported number, falling back to its
// position, and appends the page when known.
func TableTitle(index int, t analysis.Table) string {
	n := index + 1
	if t.TableNumber != nil {
		n = *t.TableNumber
	}
	title := "Table " + strconv.Itoa(n)
	if t.Page != nil {
		title += " - Page " + strconv.Itoa(*t.Page)
	}
	return title
}

type semanticView struct {
	DocumentType string
	Language     string
	Topics       []string
	Summary      template.HTML
}

// Semantic renders document type, language, topics and summary. The topics
// block is left out when there are no topics.
func (r *Renderer) Semantic(sa *analysis.SemanticAnalysis) (template.HTML, error) {
	if sa == nil {
		sa = &analysis.SemanticAnalysis{}
	}
	v := semanticView{
		DocumentType: orNotSpecified(sa.DocumentType),
		Language:     orNotSpecified(sa.Language),
		Summary:      template.HTML(template.HTMLEscapeString(NotSpecified)),
	}
	for _, topic := range sa.Topics {
		if strings.TrimSpace(topic) != "" {
			v.Topics = append(v.Topics, topic)
		}
	}
	if strings.TrimSpace(sa.Summary) != "" {
		summary, err := r.Summary(sa.Summary)
		if err != nil {
			return "", err
		}
		v.Summary = summary
	}
	return r.execute(SectionSemantic, v)
}

// Summary renders summary text as sanitised CommonMark. Raw HTML in the
// source is dropped.
func (r *Renderer) Summary(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}

// RawText renders extracted text verbatim.
func (r *Renderer) RawText(text *string) (template.HTML, error) {
	var s string
	if text != nil {
		s = *text
	}
	return r.execute(SectionRawText, s)
}

// Markdown converts rendered sections to a Markdown report. Failed sections
// keep their error notice.
func (r *Renderer) Markdown(title string, sections []Section) (string, error) {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>\n", template.HTMLEscapeString(title))
	}
	for _, s := range sections {
		fmt.Fprintf(&b, "<h2>%s</h2>\n%s\n", template.HTMLEscapeString(s.Title), s.HTML)
	}
	md, err := r.conv.ConvertString(b.String())
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return md, nil
}

func (r *Renderer) execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotSpecified
	}
	return s
}
