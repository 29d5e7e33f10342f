package filters

import (
	"bytes"
	"compress/zlib"

	"github.com/wudi/pdfoverlay/ir/raw"
)

// ExtractFilters reads Filter and DecodeParms entries from a stream dictionary.
func ExtractFilters(dict *raw.DictObj) ([]string, []*raw.DictObj) {
	var names []string
	var params []*raw.DictObj

	filterObj, ok := dict.Get("Filter")
	if !ok {
		return names, params
	}

	switch f := filterObj.(type) {
	case raw.NameObj:
		names = append(names, f.Value())
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.NameObj); ok {
				names = append(names, n.Value())
			}
		}
	}

	if len(names) > 0 {
		if pObj, ok := dict.Get("DecodeParms"); ok {
			switch p := pObj.(type) {
			case *raw.DictObj:
				params = append(params, p)
			case *raw.ArrayObj:
				for _, item := range p.Items {
					d, _ := item.(*raw.DictObj)
					params = append(params, d)
				}
			}
		}
	}

	return names, params
}

// FlateEncode compresses data as a zlib stream suitable for /FlateDecode.
func FlateEncode(data []byte) ([]byte, error) {
	return FlateEncodeLevel(data, zlib.BestCompression)
}

// FlateEncodeLevel compresses with the given zlib level. Zero selects
// BestCompression so a zero Config stays deterministic and compact.
func FlateEncodeLevel(data []byte, level int) ([]byte, error) {
	if level == 0 {
		level = zlib.BestCompression
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
