// Package ir defines the synth intermediate representation: a tree of
// instructions over named slots, produced by lowering and consumed by the
// interpreter and the code generators.
package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ===== Types =====

// TypeKind classifies IR types.
type TypeKind int

const (
	TypeInfer TypeKind = iota
	TypeInt
	TypeFloat
	TypeString
	TypeStruct
	TypeMeta
	TypeFunc
)

// Field is a named struct member.
type Field struct {
	Name string
	Type *Type
}

// Type is a minimal type descriptor. Int types keep their source name
// (i32, u32, bool); struct types carry their declared name and fields.
type Type struct {
	Kind   TypeKind
	Name   string
	Fields []Field
}

func InferType() *Type           { return &Type{Kind: TypeInfer} }
func IntType(name string) *Type  { return &Type{Kind: TypeInt, Name: name} }
func FloatType() *Type           { return &Type{Kind: TypeFloat, Name: "f32"} }
func StringType() *Type          { return &Type{Kind: TypeString} }
func MetaType() *Type            { return &Type{Kind: TypeMeta} }
func FuncType() *Type            { return &Type{Kind: TypeFunc} }
func StructType(name string, fields []Field) *Type {
	return &Type{Kind: TypeStruct, Name: name, Fields: fields}
}

func (t *Type) String() string {
	if t == nil {
		return "infer"
	}
	switch t.Kind {
	case TypeInt:
		if t.Name == "" {
			return "i32"
		}
		return t.Name
	case TypeFloat:
		return "f32"
	case TypeString:
		return "string"
	case TypeStruct:
		return t.Name
	case TypeMeta:
		return "type"
	case TypeFunc:
		return "fn"
	default:
		return "infer"
	}
}

// ===== Values =====

// ValueKind classifies the value category.
type ValueKind int

const (
	ValInvalid ValueKind = iota
	ValInt
	ValFloat
	ValString
	ValAggregate
	ValRef
	ValIntrinsic
	ValFunc
	ValType
)

func (k ValueKind) String() string {
	switch k {
	case ValInt:
		return "int"
	case ValFloat:
		return "float"
	case ValString:
		return "string"
	case ValAggregate:
		return "aggregate"
	case ValRef:
		return "ref"
	case ValIntrinsic:
		return "intrinsic"
	case ValFunc:
		return "func"
	case ValType:
		return "type"
	default:
		return "invalid"
	}
}

// Intrinsic identifies a built-in operation.
type Intrinsic int

const (
	IntrinsicPrintf Intrinsic = iota
)

func (i Intrinsic) String() string {
	if i == IntrinsicPrintf {
		return "printf"
	}
	return fmt.Sprintf("intrinsic(%d)", int(i))
}

// Param is a function parameter.
type Param struct {
	Name string
	Type *Type
}

// Function is the payload of a function value.
type Function struct {
	Name   string
	Params []Param
	Body   Instr
	// Env is the scope captured by the interpreter when the value was
	// created. It is opaque to every other package.
	Env interface{}
}

// Value is an immediate, a reference to a named slot, or one of the
// runtime-only kinds (intrinsic, function, type).
type Value struct {
	Kind ValueKind

	Int   int32
	Float float32
	// String payload for ValString
	Str string
	// Slot name for ValRef
	Ref string

	Elems     []Value
	Intrinsic Intrinsic
	Func      *Function
	Type      *Type
}

func Int(v int32) Value              { return Value{Kind: ValInt, Int: v} }
func Float(v float32) Value          { return Value{Kind: ValFloat, Float: v} }
func String(s string) Value          { return Value{Kind: ValString, Str: s} }
func Ref(name string) Value          { return Value{Kind: ValRef, Ref: name} }
func Aggregate(elems ...Value) Value { return Value{Kind: ValAggregate, Elems: elems} }
func IntrinsicValue(i Intrinsic) Value {
	return Value{Kind: ValIntrinsic, Intrinsic: i}
}
func FuncValue(f *Function) Value { return Value{Kind: ValFunc, Func: f} }
func TypeValue(t *Type) Value     { return Value{Kind: ValType, Type: t} }

// IsImmediate reports whether v is a literal int, float or string.
func (v Value) IsImmediate() bool {
	return v.Kind == ValInt || v.Kind == ValFloat || v.Kind == ValString
}

// IsConstant reports whether v may be the result of a comptime evaluation.
func (v Value) IsConstant() bool {
	return v.IsImmediate() || v.Kind == ValAggregate
}

// ZeroValue returns the default value bound by a declaration of type t
// without an initializer.
func ZeroValue(t *Type) (Value, bool) {
	if t == nil {
		return Value{}, false
	}
	switch t.Kind {
	case TypeInt:
		return Int(0), true
	case TypeFloat:
		return Float(0), true
	case TypeString:
		return String(""), true
	case TypeStruct:
		elems := make([]Value, 0, len(t.Fields))
		for _, f := range t.Fields {
			zero, ok := ZeroValue(f.Type)
			if !ok {
				return Value{}, false
			}
			elems = append(elems, zero)
		}
		return Aggregate(elems...), true
	default:
		return Value{}, false
	}
}

func (v Value) String() string { return valString(v) }

// Display renders v the way the printf intrinsic prints it.
func (v Value) Display() string {
	if v.Kind == ValString {
		return v.Str
	}
	return valString(v)
}

// Describe renders v with its kind for diagnostics.
func (v Value) Describe() string {
	return fmt.Sprintf("%s %s", v.Kind, valString(v))
}

func valString(v Value) string {
	switch v.Kind {
	case ValInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case ValFloat:
		return formatFloat(v.Float)
	case ValString:
		return strconv.Quote(v.Str)
	case ValAggregate:
		parts := make([]string, 0, len(v.Elems))
		for _, e := range v.Elems {
			parts = append(parts, valString(e))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ValRef:
		if v.Ref == "" {
			return "%ref?"
		}
		return v.Ref
	case ValIntrinsic:
		return fmt.Sprintf("<intrinsic %s>", v.Intrinsic)
	case ValFunc:
		if v.Func == nil {
			return "<func ?>"
		}
		return fmt.Sprintf("<func %s>", v.Func.Name)
	case ValType:
		return fmt.Sprintf("<type %s>", v.Type)
	default:
		return "<invalid>"
	}
}

// formatFloat always keeps a decimal point so floats never read as ints.
func formatFloat(f float32) string {
	if math.IsInf(float64(f), 0) || math.IsNaN(float64(f)) {
		return strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	s := strconv.FormatFloat(float64(f), 'f', -1, 32)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ===== Instructions =====

// Instr is implemented by all IR instructions.
type Instr interface {
	isInstr()
	String() string
}

// Program is the root of a lowered compilation unit.
type Program struct {
	Body []Instr
}

// Block groups instructions. NewScope blocks open an environment frame.
type Block struct {
	Name     string
	NewScope bool
	Body     []Instr
}

// StackVar declares a slot, optionally initialized.
type StackVar struct {
	Name string
	Type *Type
	Init *Value
}

// Load copies the value of Src into Dst.
type Load struct {
	Dst string
	Src string
}

// Store updates an existing slot.
type Store struct {
	Dst string
	Val Value
}

// BinOpKind enumerates supported binary operations.
type BinOpKind int

const (
	OpAdd BinOpKind = iota
	OpSub
)

func (k BinOpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// BinOp represents a binary arithmetic operation.
type BinOp struct {
	Dst string
	Op  BinOpKind
	LHS Value
	RHS Value
}

// Call represents a function or intrinsic call.
type Call struct {
	Dst    string
	Callee Value
	Args   []Value
}

// CondBr runs Then when Cond is truthy, otherwise the optional Else.
type CondBr struct {
	Cond Value
	Then Instr
	Else Instr
}

// Func defines a function and binds it to Name.
type Func struct {
	Name   string
	Params []Param
	Body   Instr
}

// TypeDecl declares a struct type and binds it to Name.
type TypeDecl struct {
	Name   string
	Fields []Field
}

func (*Program) isInstr()  {}
func (*Block) isInstr()    {}
func (*StackVar) isInstr() {}
func (*Load) isInstr()     {}
func (*Store) isInstr()    {}
func (*BinOp) isInstr()    {}
func (*Call) isInstr()     {}
func (*CondBr) isInstr()   {}
func (*Func) isInstr()     {}
func (*TypeDecl) isInstr() {}

// Function returns the function value defined by f.
func (f *Func) Function() *Function {
	return &Function{Name: f.Name, Params: f.Params, Body: f.Body}
}

// StructType returns the type declared by d.
func (d *TypeDecl) StructType() *Type {
	return StructType(d.Name, d.Fields)
}

// KindName names the instruction kind for diagnostics.
func KindName(in Instr) string {
	switch in.(type) {
	case *Program:
		return "program"
	case *Block:
		return "block"
	case *StackVar:
		return "stack_var"
	case *Load:
		return "load"
	case *Store:
		return "store"
	case *BinOp:
		return "binop"
	case *Call:
		return "call"
	case *CondBr:
		return "cond_br"
	case *Func:
		return "func"
	case *TypeDecl:
		return "type"
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", in)
	}
}
