// Package analyzer talks to the remote document analysis service.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/dgallion1/docscope/internal/analysis"
	"github.com/dgallion1/docscope/internal/config"
	"github.com/dgallion1/docscope/internal/document"
)

// FieldName is the multipart field the service reads the document from.
const FieldName = "pdf"

// Client submits documents to POST /analyze and checks GET /health.
// Each Submit issues exactly one request; nothing is retried.
type Client struct {
	baseURL          string
	naming           analysis.Naming
	maxResponseBytes int64
	healthTimeout    time.Duration
	httpClient       *http.Client
	log              *slog.Logger

	Stats *LatencyStats
}

func NewClient(cfg config.Config, log *slog.Logger) (*Client, error) {
	naming, err := analysis.ParseNaming(cfg.FieldNaming)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:          strings.TrimRight(cfg.AnalyzerURL, "/"),
		naming:           naming,
		maxResponseBytes: cfg.MaxResponseBytes,
		healthTimeout:    cfg.HealthTimeout,
		httpClient: &http.Client{
			Timeout: cfg.AnalyzeTimeout,
		},
		log:   log.With("component", "analyzer"),
		Stats: NewLatencyStats(time.Hour),
	}, nil
}

// Submit uploads doc and classifies the reply. It never returns a partial
// result: the Outcome holds either a decoded Result or a classified Error.
func (c *Client) Submit(ctx context.Context, doc *document.Document) analysis.Outcome {
	start := time.Now()
	out := c.submit(ctx, doc)
	out.Duration = time.Since(start)

	kind := "ok"
	if out.Err != nil {
		kind = string(out.Err.Kind)
	}
	c.Stats.Record(out.Duration.Milliseconds(), kind)
	return out
}

func (c *Client) submit(ctx context.Context, doc *document.Document) analysis.Outcome {
	body, contentType, err := encodeMultipart(doc)
	if err != nil {
		return analysis.Failure(analysis.NewError(analysis.KindInternal).Wrap(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", body)
	if err != nil {
		return analysis.Failure(analysis.NewError(analysis.KindInternal).Wrap(fmt.Errorf("create request: %w", err)))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	log := c.log.With("file", doc.Name, "size", doc.Size)
	log.Info("submitting document")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return analysis.Failure(c.transportError(ctx, log, "analyze request", err))
	}
	defer resp.Body.Close()

	// Read once; both decode stages work from this buffer.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return analysis.Failure(c.transportError(ctx, log, "read response", err))
	}
	if int64(len(raw)) > c.maxResponseBytes {
		aerr := analysis.NewError(analysis.KindUnexpectedFormat).
			WithDetail(fmt.Sprintf("response exceeds %d bytes", c.maxResponseBytes))
		log.Warn("analysis failed", "status", resp.StatusCode, "kind", aerr.Kind, "detail", aerr.Detail)
		return analysis.Failure(aerr)
	}

	res, path, aerr := analysis.Decode(raw, c.naming)
	if aerr != nil {
		log.Warn("analysis failed",
			"status", resp.StatusCode,
			"decode_path", path,
			"kind", aerr.Kind,
			"detail", aerr.Detail,
			"error", aerr.Err,
		)
		out := analysis.Failure(aerr)
		out.Path = path
		return out
	}
	log.Info("analysis succeeded", "status", resp.StatusCode, "decode_path", path, "bytes", len(raw))
	return analysis.Success(res, path)
}

func (c *Client) transportError(ctx context.Context, log *slog.Logger, op string, err error) *analysis.Error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Info("analysis canceled", "op", op)
		return analysis.NewError(analysis.KindCanceled).Wrap(ctx.Err())
	}
	log.Warn("analysis failed", "op", op, "kind", analysis.KindConnectivity, "error", err)
	return analysis.NewError(analysis.KindConnectivity).Wrap(fmt.Errorf("%s: %w", op, err))
}

// Health calls GET /health. Any transport failure or non-2xx status is a
// ConnectivityError.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return analysis.NewError(analysis.KindConnectivity).Wrap(fmt.Errorf("create request: %w", err))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return analysis.NewError(analysis.KindConnectivity).Wrap(fmt.Errorf("health: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return analysis.NewError(analysis.KindConnectivity).
			Wrap(fmt.Errorf("health: status %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart writes doc as the single file part of a multipart form,
// keeping the document's declared media type on the part.
func encodeMultipart(doc *document.Document) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName, quoteEscaper.Replace(doc.Name)))
	h.Set("Content-Type", doc.MediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create part: %w", err)
	}
	if _, err := io.Copy(part, doc.Reader()); err != nil {
		return nil, "", fmt.Errorf("write part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
