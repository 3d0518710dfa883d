package document

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// Document is a file admitted for analysis. The payload is held in memory
// so it can be re-sent if the user submits again.
type Document struct {
	Name      string
	Size      int64
	MediaType string
	Payload   []byte
}

// Reader returns a fresh reader over the payload.
func (d *Document) Reader() io.Reader {
	return bytes.NewReader(d.Payload)
}

// Info is the display summary of a selected document.
type Info struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	SizeLabel string `json:"size_label"`
	MediaType string `json:"media_type"`
	Pages     int    `json:"pages,omitempty"`
}

// Info summarises the document for display. Pages is zero when the
// payload cannot be read as a PDF.
func (d *Document) Info() Info {
	pages, _ := PageCount(d.Payload)
	return Info{
		Name:      d.Name,
		Size:      d.Size,
		SizeLabel: FormatSize(d.Size),
		MediaType: d.MediaType,
		Pages:     pages,
	}
}

// PageCount returns the number of pages in a PDF payload.
func PageCount(data []byte) (n int, err error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty payload")
	}
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("read pdf: %v", r)
		}
	}()
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return reader.NumPage(), nil
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count with binary units and at most two decimals,
// e.g. 1536 -> "1.5 KB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v, i := float64(n), 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// SanitizeName strips path components from a client supplied filename.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
