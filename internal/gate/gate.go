// Package gate admits candidate files for analysis.
package gate

import (
	"fmt"
	"io"

	"github.com/dgallion1/docscope/internal/analysis"
	"github.com/dgallion1/docscope/internal/document"
)

// Candidate is a file offered for analysis. Open is called only after the
// declared name, size and media type pass the policy check.
type Candidate struct {
	Name      string
	Size      int64
	MediaType string
	Open      func() (io.ReadCloser, error)
}

// Gate enforces the accepted media type and the upload size limit.
type Gate struct {
	AcceptedType string
	MaxBytes     int64
}

func New(acceptedType string, maxBytes int64) *Gate {
	return &Gate{AcceptedType: acceptedType, MaxBytes: maxBytes}
}

// Check applies the policy to declared attributes only. The media type must
// match exactly; the type is checked before the size.
func (g *Gate) Check(mediaType string, size int64) *analysis.Error {
	if mediaType != g.AcceptedType {
		return analysis.NewError(analysis.KindInvalidType).
			WithDetail(fmt.Sprintf("media type %q, want %q", mediaType, g.AcceptedType))
	}
	if size > g.MaxBytes {
		return g.tooLarge(size)
	}
	return nil
}

// Validate checks the candidate and, if admitted, reads its payload. A payload
// that turns out larger than the limit is rejected even if the declared size
// was within it.
func (g *Gate) Validate(c Candidate) (*document.Document, error) {
	if aerr := g.Check(c.MediaType, c.Size); aerr != nil {
		return nil, aerr
	}
	if c.Open == nil {
		return nil, fmt.Errorf("candidate %q has no content", c.Name)
	}
	rc, err := c.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, g.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.Name, err)
	}
	if int64(len(data)) > g.MaxBytes {
		return nil, g.tooLarge(int64(len(data)))
	}
	return &document.Document{
		Name:      document.SanitizeName(c.Name),
		Size:      int64(len(data)),
		MediaType: c.MediaType,
		Payload:   data,
	}, nil
}

func (g *Gate) tooLarge(size int64) *analysis.Error {
	return analysis.Errorf(analysis.KindTooLarge, "The file is too large. The maximum size is %s.", document.FormatSize(g.MaxBytes)).
		WithDetail(fmt.Sprintf("size %d exceeds %d bytes", size, g.MaxBytes))
}
