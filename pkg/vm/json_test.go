package vm

import (
	"encoding/json"
	"math"
	"testing"
)

var _ json.Marshaler = Value{}

func TestMarshalJSON(t *testing.T) {
	h := NewHeap(0)
	obj := h.NewObject()
	obj.Set("name", StringValue(h.NewString("pi")))
	obj.Set("value", NumberValue(3.14))
	obj.Set("skipped", Undefined)
	obj.Set("fn", FunctionValue(h.NewNativeFunction("fn", func(*Frame) Value { return Undefined })))

	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"null", Null, "null"},
		{"undefined", Undefined, "null"},
		{"true", BooleanValue(true), "true"},
		{"integer", NumberValue(42), "42"},
		{"float", NumberValue(3.14), "3.14"},
		{"nan", NumberValue(math.NaN()), "null"},
		{"string", StringValue(h.NewString("a\"b")), `"a\"b"`},
		{"array", ObjectValue(h.NewArray([]Value{NumberValue(1), Undefined, StringValue(h.NewString("x"))})), `[1,null,"x"]`},
		{"object", ObjectValue(obj), `{"name":"pi","value":3.14}`},
		{"empty object", ObjectValue(h.NewObject()), "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := json.Marshal(tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	h := NewHeap(0)
	input := `{"b":[1,true,null],"a":{"nested":"yes"},"n":-2.5}`
	v, err := h.ParseJSON([]byte(input))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	o := v.AsObject()
	if keys := o.OwnKeys(); len(keys) != 3 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("member order not kept: %v", keys)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != input {
		t.Errorf("re-marshaled %s, want %s", out, input)
	}

	for _, bad := range []string{"", "{", "[1,]", "1 2"} {
		if _, err := h.ParseJSON([]byte(bad)); err == nil {
			t.Errorf("ParseJSON(%q) should fail", bad)
		}
	}
}
