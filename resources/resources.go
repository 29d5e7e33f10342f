package resources

import (
	"fmt"

	"github.com/wudi/pdfoverlay/ir/raw"
)

type ResourceCategory string

const (
	CategoryFont      ResourceCategory = "Font"
	CategoryXObject   ResourceCategory = "XObject"
	CategoryExtGState ResourceCategory = "ExtGState"
)

// Allocator hands out resource names that do not collide with the names a
// page already uses, and collects the new entries into a private copy of the
// page's resource dictionary.
type Allocator struct {
	resolver raw.Resolver
	dict     *raw.DictObj
	next     map[string]int
}

// NewAllocator copies base so that the original dictionary, which may be
// shared with other pages through inheritance, is never modified. Category
// dictionaries referenced indirectly are resolved and copied inline.
func NewAllocator(r raw.Resolver, base *raw.DictObj) *Allocator {
	dict := raw.Dict()
	if base != nil {
		dict = base.Clone()
	}
	for _, cat := range []ResourceCategory{CategoryFont, CategoryXObject, CategoryExtGState} {
		v, ok := dict.Get(string(cat))
		if !ok {
			continue
		}
		if sub, ok := raw.DictValue(r, v); ok {
			dict.Set(string(cat), sub.Clone())
		} else {
			dict.Delete(string(cat))
		}
	}
	return &Allocator{resolver: r, dict: dict, next: make(map[string]int)}
}

func (a *Allocator) category(cat ResourceCategory) *raw.DictObj {
	if v, ok := a.dict.Get(string(cat)); ok {
		if d, ok := v.(*raw.DictObj); ok {
			return d
		}
	}
	d := raw.Dict()
	a.dict.Set(string(cat), d)
	return d
}

// Add registers value under a fresh name "<prefix><n>" in cat and returns
// the name.
func (a *Allocator) Add(cat ResourceCategory, prefix string, value raw.Object) string {
	sub := a.category(cat)
	key := string(cat) + "/" + prefix
	for {
		a.next[key]++
		name := fmt.Sprintf("%s%d", prefix, a.next[key])
		if _, taken := sub.Get(name); !taken {
			sub.Set(name, value)
			return name
		}
	}
}

func (a *Allocator) Lookup(cat ResourceCategory, name string) (raw.Object, bool) {
	v, ok := a.dict.Get(string(cat))
	if !ok {
		return nil, false
	}
	sub, ok := raw.DictValue(a.resolver, v)
	if !ok {
		return nil, false
	}
	return sub.Get(name)
}

// Names lists the names defined in cat, sorted.
func (a *Allocator) Names(cat ResourceCategory) []string {
	v, ok := a.dict.Get(string(cat))
	if !ok {
		return nil
	}
	sub, ok := v.(*raw.DictObj)
	if !ok {
		return nil
	}
	return sub.Keys()
}

// Dict is the updated resource dictionary.
func (a *Allocator) Dict() *raw.DictObj { return a.dict }
