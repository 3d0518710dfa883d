// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"strings"
)

// PDF builds a minimal well-formed PDF with the given number of blank pages.
// When minSize is larger than the natural size, comment lines are inserted
// after the header until the output is at least minSize bytes.
func PDF(pages int, minSize int) []byte {
	out := buildPDF(pages, 0)
	if len(out) < minSize {
		out = buildPDF(pages, minSize-len(out))
	}
	return out
}

func buildPDF(pages int, pad int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	for pad > 0 {
		n := max(min(pad, 1024), 2)
		buf.WriteString("%" + strings.Repeat("x", n-2) + "\n")
		pad -= n
	}

	var kids strings.Builder
	for i := range pages {
		fmt.Fprintf(&kids, "%d 0 R ", 3+i)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), pages),
	}
	for range pages {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	offsets := make([]int, 0, len(objs))
	for i, o := range objs {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}
