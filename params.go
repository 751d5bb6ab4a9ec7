package ygggo_gamedb

import (
	"fmt"
	"strings"
)

// ParamKind tags the type held by a bound parameter.
type ParamKind uint8

const (
	ParamUnset ParamKind = iota
	ParamNull
	ParamBool
	ParamInt8
	ParamInt16
	ParamInt32
	ParamInt64
	ParamUint8
	ParamUint16
	ParamUint32
	ParamUint64
	ParamFloat
	ParamDouble
	ParamString
	ParamBytes
)

// Param is one bound value. A ParamNull entry is distinct from an unset one.
type Param struct {
	Kind  ParamKind
	Value any
}

// PreparedStatement is a bindable instance of a registered template.
type PreparedStatement struct {
	tmpl   *statementTemplate
	params []Param
}

// ID returns the statement id.
func (s *PreparedStatement) ID() StatementID { return s.tmpl.id }

// SQL returns the driver native SQL text.
func (s *PreparedStatement) SQL() string { return s.tmpl.native }

// Params returns the bound parameters by index.
func (s *PreparedStatement) Params() []Param { return s.params }

func (s *PreparedStatement) set(index int, kind ParamKind, v any) *PreparedStatement {
	if index >= len(s.params) {
		grown := make([]Param, index+1)
		copy(grown, s.params)
		s.params = grown
	}
	s.params[index] = Param{Kind: kind, Value: v}
	return s
}

func (s *PreparedStatement) SetBool(index int, v bool) *PreparedStatement {
	return s.set(index, ParamBool, v)
}

func (s *PreparedStatement) SetInt8(index int, v int8) *PreparedStatement {
	return s.set(index, ParamInt8, v)
}

func (s *PreparedStatement) SetInt16(index int, v int16) *PreparedStatement {
	return s.set(index, ParamInt16, v)
}

func (s *PreparedStatement) SetInt32(index int, v int32) *PreparedStatement {
	return s.set(index, ParamInt32, v)
}

func (s *PreparedStatement) SetInt64(index int, v int64) *PreparedStatement {
	return s.set(index, ParamInt64, v)
}

func (s *PreparedStatement) SetUint8(index int, v uint8) *PreparedStatement {
	return s.set(index, ParamUint8, v)
}

func (s *PreparedStatement) SetUint16(index int, v uint16) *PreparedStatement {
	return s.set(index, ParamUint16, v)
}

func (s *PreparedStatement) SetUint32(index int, v uint32) *PreparedStatement {
	return s.set(index, ParamUint32, v)
}

func (s *PreparedStatement) SetUint64(index int, v uint64) *PreparedStatement {
	return s.set(index, ParamUint64, v)
}

func (s *PreparedStatement) SetFloat(index int, v float32) *PreparedStatement {
	return s.set(index, ParamFloat, v)
}

func (s *PreparedStatement) SetDouble(index int, v float64) *PreparedStatement {
	return s.set(index, ParamDouble, v)
}

func (s *PreparedStatement) SetString(index int, v string) *PreparedStatement {
	return s.set(index, ParamString, v)
}

// SetBytes binds a copy of v.
func (s *PreparedStatement) SetBytes(index int, v []byte) *PreparedStatement {
	b := make([]byte, len(v))
	copy(b, v)
	return s.set(index, ParamBytes, b)
}

func (s *PreparedStatement) SetNull(index int) *PreparedStatement {
	return s.set(index, ParamNull, nil)
}

// SetValue binds v choosing the kind from its Go type.
func (s *PreparedStatement) SetValue(index int, v any) *PreparedStatement {
	switch x := v.(type) {
	case nil:
		return s.SetNull(index)
	case bool:
		return s.SetBool(index, x)
	case int8:
		return s.SetInt8(index, x)
	case int16:
		return s.SetInt16(index, x)
	case int32:
		return s.SetInt32(index, x)
	case int:
		return s.SetInt64(index, int64(x))
	case int64:
		return s.SetInt64(index, x)
	case uint8:
		return s.SetUint8(index, x)
	case uint16:
		return s.SetUint16(index, x)
	case uint32:
		return s.SetUint32(index, x)
	case uint:
		return s.SetUint64(index, uint64(x))
	case uint64:
		return s.SetUint64(index, x)
	case float32:
		return s.SetFloat(index, x)
	case float64:
		return s.SetDouble(index, x)
	case string:
		return s.SetString(index, x)
	case []byte:
		return s.SetBytes(index, x)
	default:
		return s.SetString(index, fmt.Sprint(x))
	}
}

// Args returns the bound values in placeholder order. Every placeholder must
// be bound, and nothing beyond the last placeholder.
func (s *PreparedStatement) Args() ([]any, error) {
	if len(s.params) != s.tmpl.placeholders {
		return nil, fmt.Errorf("%w: statement %d has %d placeholders, %d bound",
			ErrParameterMismatch, s.tmpl.id, s.tmpl.placeholders, len(s.params))
	}
	args := make([]any, len(s.params))
	for i, p := range s.params {
		if p.Kind == ParamUnset {
			return nil, fmt.Errorf("%w: statement %d index %d not bound", ErrParameterMismatch, s.tmpl.id, i)
		}
		args[i] = p.Value
	}
	return args, nil
}

// String renders the statement with its bound values for diagnostics.
func (s *PreparedStatement) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", s.tmpl.id, s.tmpl.source)
	if len(s.params) > 0 {
		b.WriteString(" [")
		for i, p := range s.params {
			if i > 0 {
				b.WriteString(", ")
			}
			switch p.Kind {
			case ParamUnset:
				b.WriteString("<unset>")
			case ParamNull:
				b.WriteString("NULL")
			case ParamString:
				fmt.Fprintf(&b, "%q", p.Value)
			default:
				fmt.Fprint(&b, p.Value)
			}
		}
		b.WriteString("]")
	}
	return b.String()
}
