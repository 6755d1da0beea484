package vm

import (
	"math"
	"strconv"
	"strings"
)

// ValueType tags the contents of a Value.
type ValueType uint8

const (
	TypeUndefined ValueType = iota
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString
	TypeObject
	TypeFunction
	TypeRegExp
)

func (vt ValueType) String() string {
	switch vt {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	case TypeFunction:
		return "function"
	case TypeRegExp:
		return "regexp"
	default:
		return "<unknown>"
	}
}

// Value is a JavaScript value. Heap-backed values carry a reference to the
// allocated cell; primitives are stored inline.
type Value struct {
	typ ValueType
	num float64
	ref HeapObject
}

var (
	Undefined = Value{typ: TypeUndefined}
	Null      = Value{typ: TypeNull}
	True      = Value{typ: TypeBoolean, num: 1}
	False     = Value{typ: TypeBoolean}
)

func NumberValue(value float64) Value {
	return Value{typ: TypeNumber, num: value}
}

func IntegerValue(value int32) Value {
	return Value{typ: TypeNumber, num: float64(value)}
}

func BooleanValue(value bool) Value {
	if value {
		return True
	}
	return False
}

// StringValue wraps a heap string. A nil string yields undefined.
func StringValue(s *String) Value {
	if s == nil {
		return Undefined
	}
	return Value{typ: TypeString, ref: s}
}

func ObjectValue(o *Object) Value {
	if o == nil {
		return Null
	}
	return Value{typ: TypeObject, ref: o}
}

func FunctionValue(f *Function) Value {
	if f == nil {
		return Undefined
	}
	return Value{typ: TypeFunction, ref: f}
}

func RegExpValue(r *RegExpObject) Value {
	if r == nil {
		return Undefined
	}
	return Value{typ: TypeRegExp, ref: r}
}

func (v Value) Type() ValueType { return v.typ }

func (v Value) IsUndefined() bool       { return v.typ == TypeUndefined }
func (v Value) IsNull() bool            { return v.typ == TypeNull }
func (v Value) IsNullOrUndefined() bool { return v.typ == TypeUndefined || v.typ == TypeNull }
func (v Value) IsNumber() bool          { return v.typ == TypeNumber }
func (v Value) IsString() bool          { return v.typ == TypeString }
func (v Value) IsBoolean() bool         { return v.typ == TypeBoolean }
func (v Value) IsFunction() bool        { return v.typ == TypeFunction }

// IsObject reports whether v is any object, including functions and regexps.
func (v Value) IsObject() bool {
	return v.typ == TypeObject || v.typ == TypeFunction || v.typ == TypeRegExp
}

func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsBoolean() bool   { return v.typ == TypeBoolean && v.num != 0 }

func (v Value) AsString() *String {
	s, _ := v.ref.(*String)
	return s
}

func (v Value) AsObject() *Object {
	o, _ := v.ref.(*Object)
	return o
}

func (v Value) AsFunction() *Function {
	f, _ := v.ref.(*Function)
	return f
}

func (v Value) AsRegExp() *RegExpObject {
	r, _ := v.ref.(*RegExpObject)
	return r
}

// HeapObject returns the allocated cell behind v, or nil for primitives.
func (v Value) HeapObject() HeapObject { return v.ref }

// StrictEquals implements ===. Heap values compare by identity; strings by content.
func (v Value) StrictEquals(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeUndefined, TypeNull:
		return true
	case TypeBoolean, TypeNumber:
		return v.num == other.num
	case TypeString:
		return v.AsString().String() == other.AsString().String()
	default:
		return v.ref == other.ref
	}
}

// ToString converts v the way String(v) would for the supported types.
func (v Value) ToString() string {
	switch v.typ {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case TypeNumber:
		return formatNumber(v.num)
	case TypeString:
		return v.AsString().String()
	case TypeFunction:
		return "function " + v.AsFunction().Name() + "() { [code] }"
	case TypeRegExp:
		r := v.AsRegExp()
		return "/" + r.Source() + "/" + r.Flags()
	case TypeObject:
		o := v.AsObject()
		if o != nil && o.IsArray() {
			parts := make([]string, o.Length())
			for i := range parts {
				e := o.ElementAt(i)
				if !e.IsNullOrUndefined() {
					parts[i] = e.ToString()
				}
			}
			return strings.Join(parts, ",")
		}
		return "[object Object]"
	}
	return ""
}

// Inspect renders v for diagnostics; strings are quoted.
func (v Value) Inspect() string {
	if v.typ == TypeString {
		return strconv.Quote(v.AsString().String())
	}
	return v.ToString()
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
