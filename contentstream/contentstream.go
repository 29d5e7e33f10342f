package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wudi/pdfoverlay/scanner"
)

// Operand is a value preceding an operator in a content stream.
type Operand interface {
	Type() string
	encode(buf *bytes.Buffer)
}

type NumberOperand struct{ Value float64 }

func (NumberOperand) Type() string { return "number" }
func (n NumberOperand) encode(buf *bytes.Buffer) {
	buf.WriteString(FormatNumber(n.Value))
}

type NameOperand struct{ Value string }

func (NameOperand) Type() string { return "name" }
func (n NameOperand) encode(buf *bytes.Buffer) {
	buf.WriteByte('/')
	buf.WriteString(n.Value)
}

// StringOperand holds already-encoded bytes; Encode escapes delimiters.
type StringOperand struct{ Value []byte }

func (StringOperand) Type() string { return "string" }
func (s StringOperand) encode(buf *bytes.Buffer) {
	buf.WriteByte('(')
	for _, c := range s.Value {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\r':
			buf.WriteString(`\r`)
		case '\n':
			buf.WriteString(`\n`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

type ArrayOperand struct{ Values []Operand }

func (ArrayOperand) Type() string { return "array" }
func (a ArrayOperand) encode(buf *bytes.Buffer) {
	buf.WriteByte('[')
	for i, v := range a.Values {
		if i > 0 {
			buf.WriteByte(' ')
		}
		v.encode(buf)
	}
	buf.WriteByte(']')
}

// Operation is one operator with its operands.
type Operation struct {
	Operator string
	Operands []Operand
}

func Op(operator string, operands ...Operand) Operation {
	return Operation{Operator: operator, Operands: operands}
}

func Num(v float64) NumberOperand { return NumberOperand{Value: v} }
func Name(v string) NameOperand   { return NameOperand{Value: v} }
func Str(v []byte) StringOperand  { return StringOperand{Value: v} }

func (o Operation) String() string {
	var buf bytes.Buffer
	o.encode(&buf)
	return buf.String()
}

func (o Operation) encode(buf *bytes.Buffer) {
	for _, operand := range o.Operands {
		operand.encode(buf)
		buf.WriteByte(' ')
	}
	buf.WriteString(o.Operator)
}

// Encode serializes operations one per line.
func Encode(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		op.encode(&buf)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// FormatNumber prints v with at most four decimals and no exponent.
func FormatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// Parse splits a content stream into operations. Inline images are not
// supported.
func Parse(data []byte) ([]Operation, error) {
	s := scanner.New(data, scanner.Config{})
	var ops []Operation
	var stack []Operand
	var arrays [][]Operand
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		var operand Operand
		switch tok.Type {
		case scanner.TokenNumber:
			if tok.IsInt {
				operand = Num(float64(tok.Int))
			} else {
				operand = Num(tok.Float)
			}
		case scanner.TokenName:
			operand = Name(tok.Str)
		case scanner.TokenString:
			operand = Str(tok.Bytes)
		case scanner.TokenArray:
			arrays = append(arrays, stack)
			stack = nil
			continue
		case scanner.TokenKeyword:
			if tok.Str == "]" {
				if len(arrays) == 0 {
					return nil, fmt.Errorf("unbalanced ] at %d", tok.Pos)
				}
				operand = ArrayOperand{Values: stack}
				stack = arrays[len(arrays)-1]
				arrays = arrays[:len(arrays)-1]
				break
			}
			if len(arrays) > 0 {
				return nil, fmt.Errorf("operator %s inside array", tok.Str)
			}
			ops = append(ops, Operation{Operator: tok.Str, Operands: stack})
			stack = nil
			continue
		default:
			return nil, fmt.Errorf("unexpected token at %d", tok.Pos)
		}
		stack = append(stack, operand)
	}
	if len(stack) > 0 || len(arrays) > 0 {
		return nil, fmt.Errorf("dangling operands: %d", len(stack))
	}
	return ops, nil
}
