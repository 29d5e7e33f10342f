package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/pdfoverlay/filters"
	"github.com/wudi/pdfoverlay/ir/raw"
	"github.com/wudi/pdfoverlay/xref"
)

type impl struct{ cfg Config }

// trailerKeys are carried from the previous trailer into the new one.
var trailerKeys = []string{"Root", "Info"}

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%d %d obj\n", ref.Num, ref.Gen))
	if obj == nil {
		obj = raw.NullObj{}
	}
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

func (w *impl) WriteIncremental(ctx context.Context, u Update, out io.Writer) error {
	if u.Table == nil || u.Table.Trailer == nil {
		return errors.New("incremental update requires the original xref table")
	}
	if len(u.Objects) == 0 {
		return errors.New("incremental update has no objects")
	}

	var buf bytes.Buffer
	buf.Write(u.Original)
	if n := len(u.Original); n > 0 && u.Original[n-1] != '\n' && u.Original[n-1] != '\r' {
		buf.WriteByte('\n')
	}

	ordered := make([]raw.ObjectRef, 0, len(u.Objects))
	for ref := range u.Objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	offsets := make(map[int]int64, len(ordered))
	gens := make(map[int]int, len(ordered))
	for _, ref := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		serialized, err := w.SerializeObject(ref, u.Objects[ref])
		if err != nil {
			return fmt.Errorf("serialize %v: %w", ref, err)
		}
		buf.Write(serialized)
	}

	size := u.Table.Size()
	if last := ordered[len(ordered)-1].Num; last+1 > size {
		size = last + 1
	}

	trailer := raw.Dict()
	for _, k := range trailerKeys {
		if v, ok := u.Table.Trailer.Get(k); ok {
			trailer.Set(k, v)
		}
	}
	trailer.Set("ID", fileID(u.Table.Trailer, buf.Bytes(), w.cfg.Deterministic))
	if u.Table.Repaired {
		// the damaged chain cannot be referenced; list every live object
		for _, num := range u.Table.Objects() {
			if _, updated := offsets[num]; updated {
				continue
			}
			e, _ := u.Table.Lookup(num)
			if e.Type == xref.EntryInUse {
				offsets[num] = e.Offset
				gens[num] = e.Gen
			}
		}
	} else {
		trailer.Set("Prev", raw.NumberInt(u.Table.StartXRef))
	}

	xrefOffset := int64(buf.Len())
	if u.Table.Stream && !u.Table.Repaired {
		streamNum := size
		size++
		offsets[streamNum] = xrefOffset
		gens[streamNum] = 0
		trailer.Set("Size", raw.NumberInt(int64(size)))
		stream, err := w.xrefStream(trailer, offsets, gens)
		if err != nil {
			return err
		}
		serialized, _ := w.SerializeObject(raw.ObjectRef{Num: streamNum}, stream)
		buf.Write(serialized)
	} else {
		trailer.Set("Size", raw.NumberInt(int64(size)))
		writeXRefTable(&buf, offsets, gens, u.Table.Repaired)
		buf.WriteString("trailer\n")
		buf.Write(serializePrimitive(trailer))
		buf.WriteString("\n")
	}
	buf.WriteString(fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset))

	_, err := out.Write(buf.Bytes())
	return err
}

// subsections groups sorted object numbers into runs of consecutive numbers.
func subsections(offsets map[int]int64) [][]int {
	nums := make([]int, 0, len(offsets))
	for n := range offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var runs [][]int
	for _, n := range nums {
		if len(runs) > 0 {
			last := runs[len(runs)-1]
			if last[len(last)-1]+1 == n {
				runs[len(runs)-1] = append(last, n)
				continue
			}
		}
		runs = append(runs, []int{n})
	}
	return runs
}

func writeXRefTable(buf *bytes.Buffer, offsets map[int]int64, gens map[int]int, withHead bool) {
	buf.WriteString("xref\n")
	if withHead {
		buf.WriteString("0 1\n0000000000 65535 f \n")
	}
	for _, run := range subsections(offsets) {
		buf.WriteString(fmt.Sprintf("%d %d\n", run[0], len(run)))
		for _, n := range run {
			buf.WriteString(fmt.Sprintf("%010d %05d n \n", offsets[n], gens[n]))
		}
	}
}

// xrefStream builds a cross-reference stream (PDF 7.5.8) with /W [1 4 2].
func (w *impl) xrefStream(trailer *raw.DictObj, offsets map[int]int64, gens map[int]int) (*raw.StreamObj, error) {
	index := raw.NewArray()
	var rows []byte
	for _, run := range subsections(offsets) {
		index.Append(raw.NumberInt(int64(run[0])))
		index.Append(raw.NumberInt(int64(len(run))))
		for _, n := range run {
			off := offsets[n]
			gen := gens[n]
			rows = append(rows, 1,
				byte(off>>24), byte(off>>16), byte(off>>8), byte(off),
				byte(gen>>8), byte(gen))
		}
	}
	data, err := filters.FlateEncodeLevel(rows, w.cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("compress xref stream: %w", err)
	}
	dict := trailer.Clone()
	dict.Set("Type", raw.NameLiteral("XRef"))
	dict.Set("W", raw.NewArray(raw.NumberInt(1), raw.NumberInt(4), raw.NumberInt(2)))
	dict.Set("Index", index)
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(dict, data), nil
}

func serializePrimitive(o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return []byte("/" + escapeName(v.Value()))
	case raw.NumberObj:
		if v.IsInteger() {
			return []byte(strconv.FormatInt(v.Int(), 10))
		}
		return []byte(formatReal(v.Float()))
	case raw.BoolObj:
		if v.Value() {
			return []byte("true")
		}
		return []byte("false")
	case raw.NullObj:
		return []byte("null")
	case raw.StringObj:
		if v.IsHex() {
			return []byte(fmt.Sprintf("<%X>", v.Value()))
		}
		return escapeString(v.Value())
	case *raw.ArrayObj:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.Write(serializePrimitive(it))
		}
		b.WriteByte(']')
		return b.Bytes()
	case *raw.DictObj:
		var b bytes.Buffer
		b.WriteString("<<")
		for i, k := range v.Keys() {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("/" + escapeName(k) + " ")
			b.Write(serializePrimitive(v.KV[k]))
		}
		b.WriteString(">>")
		return b.Bytes()
	case *raw.StreamObj:
		var b bytes.Buffer
		dict := v.Dict
		if dict == nil {
			dict = raw.Dict()
		} else {
			dict = dict.Clone()
		}
		dict.Set("Length", raw.NumberInt(v.Length()))
		b.Write(serializePrimitive(dict))
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
		return b.Bytes()
	case raw.RefObj:
		return []byte(fmt.Sprintf("%d %d R", v.Ref().Num, v.Ref().Gen))
	default:
		return []byte("null")
	}
}

// formatReal prints a real without exponent and without trailing zeros.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	s = trimZeros(s)
	if s == "-0" {
		return "0"
	}
	return s
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

func escapeString(b []byte) []byte {
	var out bytes.Buffer
	out.WriteByte('(')
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			out.WriteByte('\\')
			out.WriteByte(c)
		case '\r':
			out.WriteString(`\r`)
		case '\n':
			out.WriteString(`\n`)
		default:
			out.WriteByte(c)
		}
	}
	out.WriteByte(')')
	return out.Bytes()
}

func escapeName(name string) string {
	var out []byte
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '!' || c > '~' || c == '#' || strings.IndexByte("()<>[]{}/%", c) >= 0 {
			out = append(out, fmt.Sprintf("#%02X", c)...)
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
