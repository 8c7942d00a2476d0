package ir

import (
	"fmt"
	"strings"
)

// Format renders in and its nested bodies, one instruction per line with
// two spaces of indentation per nesting level. The output is stable for a
// given instruction tree.
func Format(in Instr) string {
	var b strings.Builder
	writeInstr(&b, in, 0)
	return b.String()
}

func (p *Program) String() string  { return Format(p) }
func (i *Block) String() string    { return Format(i) }
func (i *StackVar) String() string { return Format(i) }
func (i *Load) String() string     { return Format(i) }
func (i *Store) String() string    { return Format(i) }
func (i *BinOp) String() string    { return Format(i) }
func (i *Call) String() string     { return Format(i) }
func (i *CondBr) String() string   { return Format(i) }
func (i *Func) String() string     { return Format(i) }
func (i *TypeDecl) String() string { return Format(i) }

func writeLine(b *strings.Builder, depth int, format string, args ...interface{}) {
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, format, args...)
	b.WriteByte('\n')
}

func writeBody(b *strings.Builder, body []Instr, depth int) {
	for _, in := range body {
		writeInstr(b, in, depth)
	}
}

func writeInstr(b *strings.Builder, in Instr, depth int) {
	switch i := in.(type) {
	case *Program:
		writeLine(b, depth, "program")
		writeBody(b, i.Body, depth+1)
	case *Block:
		if i.NewScope {
			writeLine(b, depth, "block %s", i.Name)
		} else {
			writeLine(b, depth, "block %s noscope", i.Name)
		}
		writeBody(b, i.Body, depth+1)
	case *StackVar:
		if i.Init != nil {
			writeLine(b, depth, "stack_var %s: %s = %s", i.Name, i.Type, i.Init)
		} else {
			writeLine(b, depth, "stack_var %s: %s", i.Name, i.Type)
		}
	case *Load:
		writeLine(b, depth, "%s = load %s", i.Dst, i.Src)
	case *Store:
		writeLine(b, depth, "store %s, %s", i.Dst, i.Val)
	case *BinOp:
		writeLine(b, depth, "%s = %s %s, %s", i.Dst, i.Op, i.LHS, i.RHS)
	case *Call:
		writeLine(b, depth, "%s = call %s(%s)", i.Dst, i.Callee, joinValues(i.Args))
	case *CondBr:
		writeLine(b, depth, "cond_br %s", i.Cond)
		writeLine(b, depth+1, "then")
		if i.Then != nil {
			writeInstr(b, i.Then, depth+2)
		}
		if i.Else != nil {
			writeLine(b, depth+1, "else")
			writeInstr(b, i.Else, depth+2)
		}
	case *Func:
		writeLine(b, depth, "func %s(%s)", i.Name, joinParams(i.Params))
		if i.Body != nil {
			writeInstr(b, i.Body, depth+1)
		}
	case *TypeDecl:
		writeLine(b, depth, "type %s {%s}", i.Name, joinFields(i.Fields))
	case nil:
		writeLine(b, depth, "<nil>")
	default:
		writeLine(b, depth, "<unknown %T>", in)
	}
}

func joinValues(vals []Value) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, ", ")
}

func joinParams(params []Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, p.Type))
	}
	return strings.Join(parts, ", ")
}

func joinFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Type))
	}
	return strings.Join(parts, ", ")
}
