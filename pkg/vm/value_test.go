package vm

import (
	"math"
	"testing"
)

func TestValue_ToString(t *testing.T) {
	heap := NewHeap(0)
	tests := []struct {
		value Value
		want  string
	}{
		{Undefined, "undefined"},
		{Null, "null"},
		{True, "true"},
		{NumberValue(42), "42"},
		{NumberValue(1.5), "1.5"},
		{NumberValue(math.NaN()), "NaN"},
		{NumberValue(math.Inf(-1)), "-Infinity"},
		{StringValue(heap.NewString("hi")), "hi"},
		{RegExpValue(heap.NewRegExp("a+", "g")), "/a+/g"},
		{ObjectValue(heap.NewObject()), "[object Object]"},
	}
	for _, tt := range tests {
		if got := tt.value.ToString(); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.value.Type(), tt.want, got)
		}
	}
}

func TestValue_StrictEquals(t *testing.T) {
	heap := NewHeap(0)
	a := StringValue(heap.NewString("s"))
	b := StringValue(heap.NewString("s"))
	if !a.StrictEquals(b) {
		t.Error("Expected strings with equal content to be strictly equal")
	}
	o1 := ObjectValue(heap.NewObject())
	o2 := ObjectValue(heap.NewObject())
	if o1.StrictEquals(o2) {
		t.Error("Expected distinct objects not to be equal")
	}
	if NumberValue(1).StrictEquals(BooleanValue(true)) {
		t.Error("Expected values of different types not to be equal")
	}
}

func TestValue_Constructors(t *testing.T) {
	if !StringValue(nil).IsUndefined() {
		t.Error("Expected nil string to be undefined")
	}
	if !ObjectValue(nil).IsNull() {
		t.Error("Expected nil object to be null")
	}
	if !IntegerValue(3).IsNumber() || IntegerValue(3).AsNumber() != 3 {
		t.Error("Expected IntegerValue to produce a number")
	}
}

func TestRegExp_ECMAScript(t *testing.T) {
	heap := NewHeap(0)
	re := heap.NewRegExp(`(\d+)-(\d+)`, "g")
	if err := re.Valid(); err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}
	m, err := re.Exec("a 10-20 b 30-40")
	if err != nil || len(m) != 3 || m[1] != "10" || m[2] != "20" {
		t.Fatalf("Unexpected first match %v (%v)", m, err)
	}
	m, _ = re.Exec("a 10-20 b 30-40")
	if len(m) != 3 || m[1] != "30" {
		t.Errorf("Expected global regexp to continue from lastIndex, got %v", m)
	}
	if ok, _ := re.Test("a 10-20 b 30-40"); ok {
		t.Error("Expected third match to fail and reset lastIndex")
	}
	if re.LastIndex() != 0 {
		t.Errorf("Expected lastIndex reset, got %d", re.LastIndex())
	}

	ci := heap.NewRegExp("abc", "i")
	if ok, _ := ci.Test("xABCx"); !ok {
		t.Error("Expected case-insensitive match")
	}

	dotAll := heap.NewRegExp("a.b", "s")
	if err := dotAll.Valid(); err != nil {
		t.Fatalf("Unexpected compile error for dotAll flag: %v", err)
	}
	if ok, _ := dotAll.Test("a\nb"); !ok {
		t.Error("Expected s flag to match across newlines")
	}
	if ok, _ := heap.NewRegExp("a.b", "").Test("a\nb"); ok {
		t.Error("Expected . to stop at newlines without the s flag")
	}

	bad := heap.NewRegExp("(", "")
	if bad.Valid() == nil {
		t.Error("Expected invalid pattern to report an error")
	}
	if ok, _ := bad.Test("("); ok {
		t.Error("Expected invalid pattern never to match")
	}
}
