package cheevos

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnsupportedCondition = errors.New("cheevos: unsupported condition")

type operandKind int

const (
	operandConst operandKind = iota
	operandMem
	operandDelta
)

type operand struct {
	kind    operandKind
	address uint32
	size    int
	value   uint32
}

func (o operand) lua() string {
	switch o.kind {
	case operandMem:
		return fmt.Sprintf("mem(%d, %d)", o.address, o.size)
	case operandDelta:
		return fmt.Sprintf("delta(%d, %d)", o.address, o.size)
	default:
		return strconv.FormatUint(uint64(o.value), 10)
	}
}

type comparison struct {
	left  operand
	op    string
	right operand
}

// longest operators first:
var operators = []string{"!=", "<=", ">=", "=", "<", ">"}

var luaOperators = map[string]string{
	"=":  "==",
	"!=": "~=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// parseMemAddr parses the conjunction subset of the MemAddr condition syntax:
// comparisons joined by '_' between memory operands (0xH 8-bit, 0x 16-bit,
// 0xX 32-bit, optional d prefix for last frame's value) and constants
// (decimal, or hex with an h prefix).
func parseMemAddr(s string) ([]comparison, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedCondition)
	}
	if strings.ContainsAny(s, "S|:.()") {
		return nil, fmt.Errorf("%w: %q uses alt groups, flags or hit counts", ErrUnsupportedCondition, s)
	}

	var cmps []comparison
	for _, part := range strings.Split(s, "_") {
		c, err := parseComparison(part)
		if err != nil {
			return nil, err
		}
		cmps = append(cmps, c)
	}
	return cmps, nil
}

func parseComparison(s string) (c comparison, err error) {
	for _, op := range operators {
		i := strings.Index(s, op)
		if i < 0 {
			continue
		}
		c.op = op
		if c.left, err = parseOperand(s[:i]); err != nil {
			return
		}
		if c.right, err = parseOperand(s[i+len(op):]); err != nil {
			return
		}
		return
	}
	return c, fmt.Errorf("%w: %q has no comparison", ErrUnsupportedCondition, s)
}

func parseOperand(s string) (o operand, err error) {
	kind := operandMem
	if strings.HasPrefix(s, "d") {
		kind = operandDelta
		s = s[1:]
	}

	if !strings.HasPrefix(s, "0x") {
		if kind == operandDelta {
			return o, fmt.Errorf("%w: delta of constant %q", ErrUnsupportedCondition, s)
		}
		return parseConst(s)
	}
	s = s[2:]

	o.kind = kind
	o.size = 2
	if len(s) > 0 {
		switch s[0] {
		case 'H', 'h':
			o.size, s = 1, s[1:]
		case 'X', 'x':
			o.size, s = 4, s[1:]
		case ' ':
			s = s[1:]
		}
	}

	a, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return o, fmt.Errorf("%w: address %q: %v", ErrUnsupportedCondition, s, err)
	}
	o.address = uint32(a)
	return o, nil
}

func parseConst(s string) (o operand, err error) {
	base := 10
	if strings.HasPrefix(s, "h") {
		base, s = 16, s[1:]
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return o, fmt.Errorf("%w: constant %q: %v", ErrUnsupportedCondition, s, err)
	}
	return operand{kind: operandConst, value: uint32(v)}, nil
}

// compile emits a Lua chunk returning whether every comparison holds.
// All comparisons are evaluated before they are combined so that each
// evaluation pass reads every referenced address.
func compile(cmps []comparison) string {
	sb := strings.Builder{}
	names := make([]string, len(cmps))
	for i, c := range cmps {
		names[i] = fmt.Sprintf("c%d", i)
		fmt.Fprintf(&sb, "local %s = %s %s %s\n", names[i], c.left.lua(), luaOperators[c.op], c.right.lua())
	}
	fmt.Fprintf(&sb, "return %s\n", strings.Join(names, " and "))
	return sb.String()
}
