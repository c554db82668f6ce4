package renderer

import (
	"reflect"
	"testing"
)

func TestParseLoopHeader(t *testing.T) {
	tests := []struct {
		src     string
		want    LoopHeader
		wantErr bool
	}{
		{src: "item of items", want: LoopHeader{"item", "$index", "items"}},
		{src: "item in items", want: LoopHeader{"item", "$index", "items"}},
		{src: "(item, i) of list.filter(x => x > 1)", want: LoopHeader{"item", "i", "list.filter(x => x > 1)"}},
		{src: "item, i in obj", want: LoopHeader{"item", "i", "obj"}},
		{src: "[k, v] of entries", want: LoopHeader{"k", "v", "entries"}},
		{src: "  n   of   10  ", want: LoopHeader{"n", "$index", "10"}},
		{src: "$x of $store.rows", want: LoopHeader{"$x", "$index", "$store.rows"}},
		{src: "items", want: LoopHeader{"$item", "$index", "items"}},
		{src: "10", want: LoopHeader{"$item", "$index", "10"}},
		{src: "offset", want: LoopHeader{"$item", "$index", "offset"}},
		{src: "   ", wantErr: true},
		{src: "x of ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := ParseLoopHeader(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLoopHeader(%q) error = %v, wantErr %v", tt.src, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLoopHeader(%q) = %+v, want %+v", tt.src, got, tt.want)
			}
		})
	}
}

func TestLoopGrammar_Tags(t *testing.T) {
	for _, typ := range []reflect.Type{reflect.TypeOf(loopGrammar{}), reflect.TypeOf(loopVars{})} {
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			if f.Tag == "" {
				continue
			}
			if _, ok := f.Tag.Lookup("parser"); !ok {
				t.Errorf("%s.%s has an unkeyed grammar tag %q", typ.Name(), f.Name, f.Tag)
			}
		}
	}
}
