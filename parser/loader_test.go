package parser

import (
	"context"
	"testing"

	"github.com/wudi/pdfoverlay/ir/raw"
	"github.com/wudi/pdfoverlay/xref"
)

func TestObjectLoaderCachesObjects(t *testing.T) {
	data := buildSinglePagePDF()
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), data)
	if err != nil {
		t.Fatalf("resolve xref: %v", err)
	}
	loader := NewObjectLoader(data, table, Config{})

	first, err := loader.Load(context.Background(), raw.ObjectRef{Num: 1})
	if err != nil {
		t.Fatalf("load object: %v", err)
	}
	second, err := loader.Load(context.Background(), raw.ObjectRef{Num: 1})
	if err != nil {
		t.Fatalf("load object: %v", err)
	}
	if first != second {
		t.Error("expected cached object on second load")
	}
}

func TestObjectLoaderMissingObjectIsNull(t *testing.T) {
	data := buildSinglePagePDF()
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	obj, err := NewObjectLoader(data, table, Config{}).Load(context.Background(), raw.ObjectRef{Num: 99})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := obj.(raw.NullObj); !ok {
		t.Errorf("expected null, got %T", obj)
	}
}

func TestResolverAdapterFollowsRefs(t *testing.T) {
	data := buildSinglePagePDF()
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	r := NewObjectLoader(data, table, Config{}).Resolver(context.Background())
	n, ok := raw.IntValue(r, raw.Ref(6, 0))
	if !ok || n != 6 {
		t.Errorf("IntValue via resolver = %d, %v", n, ok)
	}
}
