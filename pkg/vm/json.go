package vm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MarshalJSON renders v the way JSON.stringify would. Undefined and
// functions become null at the top level and in arrays, and are skipped as
// object members. Module namespaces serialize their current exports.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.appendJSON(&buf, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const maxJSONDepth = 512

func (v Value) appendJSON(buf *bytes.Buffer, depth int) error {
	if depth > maxJSONDepth {
		return fmt.Errorf("json: value nested deeper than %d levels", maxJSONDepth)
	}
	switch v.typ {
	case TypeBoolean:
		buf.WriteString(strconv.FormatBool(v.AsBoolean()))
	case TypeNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(formatNumber(v.num))
	case TypeString:
		data, err := json.Marshal(v.AsString().String())
		if err != nil {
			return err
		}
		buf.Write(data)
	case TypeRegExp:
		buf.WriteString("{}")
	case TypeObject:
		o := v.AsObject()
		if o == nil {
			buf.WriteString("null")
			return nil
		}
		if o.IsArray() {
			buf.WriteByte('[')
			for i := 0; i < o.Length(); i++ {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := o.ElementAt(i).appendJSON(buf, depth+1); err != nil {
					return err
				}
			}
			buf.WriteByte(']')
			return nil
		}
		buf.WriteByte('{')
		first := true
		for _, key := range o.OwnKeys() {
			member, ok := o.Get(key)
			if !ok || member.IsUndefined() || member.IsFunction() {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			name, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := member.appendJSON(buf, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
	return nil
}

// ParseJSON decodes data into heap values. Object members keep the order
// they appear in. The result is unrooted; hold a guard until it is stored.
func (h *Heap) ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := h.decodeJSON(dec)
	if err != nil {
		return Undefined, err
	}
	if dec.More() {
		return Undefined, fmt.Errorf("json: unexpected data after top-level value")
	}
	return v, nil
}

func (h *Heap) decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Undefined, err
	}
	switch t := tok.(type) {
	case nil:
		return Null, nil
	case bool:
		return BooleanValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Undefined, err
		}
		return NumberValue(f), nil
	case string:
		return StringValue(h.NewString(t)), nil
	case json.Delim:
		switch t {
		case '[':
			var elements []Value
			for dec.More() {
				el, err := h.decodeJSON(dec)
				if err != nil {
					return Undefined, err
				}
				elements = append(elements, el)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined, err
			}
			return ObjectValue(h.NewArray(elements)), nil
		case '{':
			obj := h.NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Undefined, err
				}
				key, _ := keyTok.(string)
				member, err := h.decodeJSON(dec)
				if err != nil {
					return Undefined, err
				}
				obj.Set(key, member)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined, err
			}
			return ObjectValue(obj), nil
		}
	}
	return Undefined, fmt.Errorf("json: unexpected token %v", tok)
}
