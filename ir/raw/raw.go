package raw

import "fmt"

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Resolver dereferences indirect objects. Implementations return the object
// unchanged when it is not a reference.
type Resolver interface {
	Resolve(obj Object) (Object, error)
}

// DictValue returns the dictionary behind obj, following one level of
// indirection through r when obj is a reference.
func DictValue(r Resolver, obj Object) (*DictObj, bool) {
	obj = resolve(r, obj)
	switch v := obj.(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, true
	}
	return nil, false
}

// ArrayValue returns the array behind obj, resolving references through r.
func ArrayValue(r Resolver, obj Object) (*ArrayObj, bool) {
	a, ok := resolve(r, obj).(*ArrayObj)
	return a, ok
}

// NumberValue returns the numeric value behind obj as a float.
func NumberValue(r Resolver, obj Object) (float64, bool) {
	n, ok := resolve(r, obj).(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// IntValue returns the integer value behind obj.
func IntValue(r Resolver, obj Object) (int64, bool) {
	n, ok := resolve(r, obj).(NumberObj)
	if !ok {
		return 0, false
	}
	if n.IsInt {
		return n.I, true
	}
	return int64(n.F), true
}

// NameValue returns the name string behind obj.
func NameValue(r Resolver, obj Object) (string, bool) {
	n, ok := resolve(r, obj).(NameObj)
	if !ok {
		return "", false
	}
	return n.Val, true
}

func resolve(r Resolver, obj Object) Object {
	if obj == nil {
		return nil
	}
	if _, isRef := obj.(RefObj); !isRef || r == nil {
		return obj
	}
	out, err := r.Resolve(obj)
	if err != nil {
		return nil
	}
	return out
}
