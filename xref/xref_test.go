package xref_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wudi/pdfoverlay/filters"
	"github.com/wudi/pdfoverlay/xref"
)

func buildSimplePDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	offsets := make(map[int]int64)

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 2; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString("startxref\n")
	buf.WriteString(fmt.Sprintf("%d\n", xrefOffset))
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), offsets
}

func TestResolverParsesXRefTable(t *testing.T) {
	pdf, offsets := buildSimplePDF()

	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for num, want := range offsets {
		e, ok := table.Lookup(num)
		if !ok {
			t.Fatalf("object %d missing", num)
		}
		if e.Type != xref.EntryInUse || e.Offset != want {
			t.Errorf("object %d: got %+v, want offset %d", num, e, want)
		}
	}
	if _, ok := table.Lookup(0); ok {
		t.Error("free object 0 should not resolve")
	}
	if table.Stream {
		t.Error("classic table reported as stream")
	}
	if got := table.Size(); got != 3 {
		t.Errorf("Size = %d, want 3", got)
	}
	if got := table.Objects(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Objects = %v", got)
	}
}

// appendUpdate writes an incremental section redefining object 2.
func appendUpdate(base []byte, prev int) ([]byte, int64) {
	buf := bytes.NewBuffer(append([]byte(nil), base...))
	off := int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 1 >>\nendobj\n")
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 1\n0000000000 65535 f \n2 1\n%010d 00000 n \n", off)
	fmt.Fprintf(buf, "trailer\n<< /Size 3 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", prev, xrefOff)
	return buf.Bytes(), off
}

func TestResolverFollowsPrevChain(t *testing.T) {
	pdf, offsets := buildSimplePDF()
	prev := bytes.LastIndex(pdf, []byte("xref\n0 3"))
	updated, newOff := appendUpdate(pdf, prev)

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), updated)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if e, _ := table.Lookup(2); e.Offset != newOff {
		t.Errorf("object 2 offset = %d, want newest %d", e.Offset, newOff)
	}
	if e, _ := table.Lookup(1); e.Offset != offsets[1] {
		t.Errorf("object 1 offset = %d, want %d from older section", e.Offset, offsets[1])
	}
	if v, ok := table.Trailer.Get("Prev"); !ok || v == nil {
		t.Error("newest trailer should be kept")
	}
}

func TestResolverDetectsPrevLoop(t *testing.T) {
	pdf, _ := buildSimplePDF()
	xrefOff := bytes.LastIndex(pdf, []byte("xref\n0 3"))
	looped := bytes.Replace(pdf, []byte("/Root 1 0 R >>"), []byte(fmt.Sprintf("/Root 1 0 R /Prev %d >>", xrefOff)), 1)

	_, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), looped)
	if !errors.Is(err, xref.ErrXRefLoop) {
		t.Fatalf("expected loop error, got %v", err)
	}
}

func xrefStreamRows(rows [][3]int64) []byte {
	var out []byte
	for _, r := range rows {
		out = append(out, byte(r[0]))
		out = append(out, byte(r[1]>>8), byte(r[1]))
		out = append(out, byte(r[2]))
	}
	return out
}

func buildXRefStreamPDF(t *testing.T) ([]byte, int64) {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.5\n")
	off1 := int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	xrefOff := int64(buf.Len())
	payload, err := filters.FlateEncode(xrefStreamRows([][3]int64{
		{0, 0, 255},
		{1, off1, 0},
		{2, 5, 3},
		{1, xrefOff, 0},
	}))
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(buf, "3 0 obj\n<< /Type /XRef /Size 4 /W [1 2 1] /Root 1 0 R /Filter /FlateDecode /Length %d >>\nstream\n", len(payload))
	buf.Write(payload)
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes(), off1
}

func TestResolverParsesXRefStream(t *testing.T) {
	pdf, off1 := buildXRefStreamPDF(t)

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !table.Stream {
		t.Error("expected stream-based table")
	}
	if e, ok := table.Lookup(1); !ok || e.Offset != off1 {
		t.Errorf("object 1: %+v ok=%v", e, ok)
	}
	e, ok := table.Lookup(2)
	if !ok || e.Type != xref.EntryCompressed || e.Stream != 5 || e.Index != 3 {
		t.Errorf("object 2 compressed entry: %+v ok=%v", e, ok)
	}
	if name, _ := table.Trailer.Get("Type"); name == nil {
		t.Error("trailer should be the stream dictionary")
	}
}

func TestResolverHybridPrefersXRefStmOverFreePlaceholders(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.5\n")
	off1 := int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	stmOff := int64(buf.Len())
	rows := xrefStreamRows([][3]int64{{2, 7, 0}})
	fmt.Fprintf(buf, "4 0 obj\n<< /Type /XRef /Size 5 /W [1 2 1] /Index [2 1] /Length %d >>\nstream\n", len(rows))
	buf.Write(rows)
	buf.WriteString("\nendstream\nendobj\n")

	tableOff := buf.Len()
	buf.WriteString("xref\n0 3\n0000000000 65535 f \n")
	fmt.Fprintf(buf, "%010d 00000 n \n", off1)
	buf.WriteString("0000000000 00000 f \n")
	fmt.Fprintf(buf, "trailer\n<< /Size 5 /Root 1 0 R /XRefStm %d >>\nstartxref\n%d\n%%%%EOF\n", stmOff, tableOff)

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Stream {
		t.Error("newest section is a classic table")
	}
	e, ok := table.Lookup(2)
	if !ok || e.Type != xref.EntryCompressed || e.Stream != 7 {
		t.Errorf("object 2 should come from XRefStm: %+v ok=%v", e, ok)
	}
}

func TestResolverRejectsBadOffset(t *testing.T) {
	pdf, _ := buildSimplePDF()
	bad := bytes.Replace(pdf, []byte("startxref\n"), []byte("startxref\n9"), 1)

	if _, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), bad); err == nil {
		t.Fatal("expected error for out of range startxref")
	}
}
