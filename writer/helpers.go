package writer

import (
	"crypto/rand"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfoverlay/ir/raw"
)

// fileID keeps the permanent first identifier of the original file and
// derives a fresh second one for this revision (PDF 14.4).
func fileID(prev *raw.DictObj, content []byte, deterministic bool) *raw.ArrayObj {
	changing := make([]byte, 16)
	if deterministic {
		sum := blake2b.Sum256(content)
		copy(changing, sum[:16])
	} else if _, err := rand.Read(changing); err != nil {
		sum := blake2b.Sum256(content)
		copy(changing, sum[:16])
	}

	permanent := changing
	if v, ok := prev.Get("ID"); ok {
		if arr, ok := v.(*raw.ArrayObj); ok && arr.Len() > 0 {
			if s, ok := arr.Items[0].(raw.StringObj); ok && len(s.Value()) > 0 {
				permanent = s.Value()
			}
		}
	}
	return raw.NewArray(raw.HexStr(permanent), raw.HexStr(changing))
}
