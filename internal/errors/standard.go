// Package errors provides the standardized compiler errors for synth.
//
// Every failure in the pipeline (lexing, parsing, lowering, interpretation,
// configuration, code generation) is reported as a *CompilerError. There is
// no recovery: the first error aborts the current compilation or execution.
package errors

import (
	"fmt"
	"runtime"

	"github.com/synth-lang/synth/internal/position"
)

// ErrorCategory represents the pipeline stage that produced an error
type ErrorCategory string

const (
	CategoryLex       ErrorCategory = "LEX"
	CategoryParse     ErrorCategory = "PARSE"
	CategoryLower     ErrorCategory = "LOWER"
	CategoryInterpret ErrorCategory = "INTERPRET"
	CategoryConfig    ErrorCategory = "CONFIG"
	CategoryCodegen   ErrorCategory = "CODEGEN"
)

// Error codes.
const (
	CodeInvalidCharacter   = "INVALID_CHARACTER"
	CodeUnterminatedString = "UNTERMINATED_STRING"
	CodeInvalidEscape      = "INVALID_ESCAPE"
	CodeMalformedNumber    = "MALFORMED_NUMBER"

	CodeUnexpectedToken = "UNEXPECTED_TOKEN"
	CodeUnexpectedEOF   = "UNEXPECTED_EOF"

	CodeUnsupportedNode     = "UNSUPPORTED_NODE"
	CodeUnsupportedOperator = "UNSUPPORTED_OPERATOR"
	CodeInvalidAssignTarget = "INVALID_ASSIGN_TARGET"
	CodeInvalidCallee       = "INVALID_CALLEE"
	CodeMissingValue        = "MISSING_VALUE"
	CodeNotConstant         = "NOT_CONSTANT"

	CodeUnresolvedName     = "UNRESOLVED_NAME"
	CodeUnsupportedType    = "UNSUPPORTED_TYPE"
	CodeUnsupportedInstr   = "UNSUPPORTED_INSTRUCTION"
	CodeNotCallable        = "NOT_CALLABLE"
	CodeArityMismatch      = "ARITY_MISMATCH"
	CodeUnknownCondition   = "UNKNOWN_CONDITION_TYPE"
	CodeCallDepthExceeded  = "CALL_DEPTH_EXCEEDED"
	CodeUndeclaredAssign   = "UNDECLARED_ASSIGNMENT"
	CodeOutputFailed       = "OUTPUT_FAILED"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeIncompatibleLang   = "INCOMPATIBLE_LANGUAGE"
	CodeUnsupportedBackend = "UNSUPPORTED_BACKEND"
)

// CompilerError provides a consistent error format across the pipeline
type CompilerError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Span     position.Span
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface
func (e *CompilerError) Error() string {
	if e.Span.Start.IsValid() {
		return fmt.Sprintf("%s: [%s:%s] %s", e.Span.Start, e.Category, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Is reports whether target is a *CompilerError with the same category and
// code, so callers can match with errors.Is against a template error.
func (e *CompilerError) Is(target error) bool {
	t, ok := target.(*CompilerError)
	if !ok {
		return false
	}
	return t.Category == e.Category && t.Code == e.Code
}

// WithSpan returns a copy of e located at span, unless e already has one.
func (e *CompilerError) WithSpan(span position.Span) *CompilerError {
	if e.Span.Start.IsValid() {
		return e
	}
	cp := *e
	cp.Span = span
	return &cp
}

// NewCompilerError creates a new standardized error
func NewCompilerError(category ErrorCategory, code, message string, span position.Span, context map[string]interface{}) *CompilerError {
	pc, _, _, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &CompilerError{
		Category: category,
		Code:     code,
		Message:  message,
		Span:     span,
		Context:  context,
		Caller:   caller,
	}
}

// Template returns an error usable as an errors.Is target.
func Template(category ErrorCategory, code string) *CompilerError {
	return &CompilerError{Category: category, Code: code}
}

// Lexical errors

func InvalidCharacter(ch rune, span position.Span) *CompilerError {
	return NewCompilerError(CategoryLex, CodeInvalidCharacter,
		fmt.Sprintf("invalid character %q", ch),
		span, map[string]interface{}{"char": ch})
}

func UnterminatedString(span position.Span) *CompilerError {
	return NewCompilerError(CategoryLex, CodeUnterminatedString,
		"unterminated string literal", span, nil)
}

func InvalidEscape(ch rune, span position.Span) *CompilerError {
	return NewCompilerError(CategoryLex, CodeInvalidEscape,
		fmt.Sprintf("invalid escape sequence \\%c", ch),
		span, map[string]interface{}{"char": ch})
}

func MalformedNumber(literal string, span position.Span) *CompilerError {
	return NewCompilerError(CategoryLex, CodeMalformedNumber,
		fmt.Sprintf("malformed number %q", literal),
		span, map[string]interface{}{"literal": literal})
}

// Parse errors

func UnexpectedToken(expected, found string, span position.Span) *CompilerError {
	return NewCompilerError(CategoryParse, CodeUnexpectedToken,
		fmt.Sprintf("expected %s, found %s", expected, found),
		span, map[string]interface{}{"expected": expected, "found": found})
}

func UnexpectedEOF(expected string, span position.Span) *CompilerError {
	return NewCompilerError(CategoryParse, CodeUnexpectedEOF,
		fmt.Sprintf("unexpected end of input, expected %s", expected),
		span, map[string]interface{}{"expected": expected})
}

// Lowering errors

func UnsupportedNode(kind string, span position.Span) *CompilerError {
	return NewCompilerError(CategoryLower, CodeUnsupportedNode,
		fmt.Sprintf("cannot lower %s", kind),
		span, map[string]interface{}{"node": kind})
}

func UnsupportedOperator(op string, span position.Span) *CompilerError {
	return NewCompilerError(CategoryLower, CodeUnsupportedOperator,
		fmt.Sprintf("unsupported operator %q", op),
		span, map[string]interface{}{"operator": op})
}

func InvalidAssignTarget(kind string, span position.Span) *CompilerError {
	return NewCompilerError(CategoryLower, CodeInvalidAssignTarget,
		fmt.Sprintf("cannot assign to %s, only identifiers are assignable", kind),
		span, map[string]interface{}{"node": kind})
}

func InvalidCallee(kind string, span position.Span) *CompilerError {
	return NewCompilerError(CategoryLower, CodeInvalidCallee,
		fmt.Sprintf("callee must be an identifier, found %s", kind),
		span, map[string]interface{}{"node": kind})
}

func MissingValue(what string, span position.Span) *CompilerError {
	return NewCompilerError(CategoryLower, CodeMissingValue,
		fmt.Sprintf("%s does not produce a value", what),
		span, map[string]interface{}{"what": what})
}

func NotConstant(value string, span position.Span) *CompilerError {
	return NewCompilerError(CategoryLower, CodeNotConstant,
		fmt.Sprintf("comptime expression evaluated to non-constant %s", value),
		span, map[string]interface{}{"value": value})
}

// Interpreter errors

func UnresolvedName(name string) *CompilerError {
	return NewCompilerError(CategoryInterpret, CodeUnresolvedName,
		fmt.Sprintf("variable not found: %s", name),
		position.Span{}, map[string]interface{}{"name": name})
}

func UnsupportedType(op, value string) *CompilerError {
	return NewCompilerError(CategoryInterpret, CodeUnsupportedType,
		fmt.Sprintf("unsupported operand %s for %s", value, op),
		position.Span{}, map[string]interface{}{"operation": op, "value": value})
}

func UnsupportedInstr(kind string) *CompilerError {
	return NewCompilerError(CategoryInterpret, CodeUnsupportedInstr,
		fmt.Sprintf("unsupported instruction %s", kind),
		position.Span{}, map[string]interface{}{"instruction": kind})
}

func NotCallable(value string) *CompilerError {
	return NewCompilerError(CategoryInterpret, CodeNotCallable,
		fmt.Sprintf("callee must be function or intrinsic, found %s", value),
		position.Span{}, map[string]interface{}{"value": value})
}

func ArityMismatch(callee string, want, got int) *CompilerError {
	return NewCompilerError(CategoryInterpret, CodeArityMismatch,
		fmt.Sprintf("%s expects %d argument(s), got %d", callee, want, got),
		position.Span{}, map[string]interface{}{"callee": callee, "want": want, "got": got})
}

func UnknownCondition(value string) *CompilerError {
	return NewCompilerError(CategoryInterpret, CodeUnknownCondition,
		fmt.Sprintf("unknown condition type %s", value),
		position.Span{}, map[string]interface{}{"value": value})
}

func CallDepthExceeded(limit int) *CompilerError {
	return NewCompilerError(CategoryInterpret, CodeCallDepthExceeded,
		fmt.Sprintf("call depth exceeded limit of %d", limit),
		position.Span{}, map[string]interface{}{"limit": limit})
}

func UndeclaredAssign(name string) *CompilerError {
	return NewCompilerError(CategoryInterpret, CodeUndeclaredAssign,
		fmt.Sprintf("assignment to undeclared variable %s", name),
		position.Span{}, map[string]interface{}{"name": name})
}

func OutputFailed(what string, err error) *CompilerError {
	return NewCompilerError(CategoryInterpret, CodeOutputFailed,
		fmt.Sprintf("%s: %v", what, err),
		position.Span{}, map[string]interface{}{"cause": err})
}

// Configuration and backend errors

func InvalidConfig(details string) *CompilerError {
	return NewCompilerError(CategoryConfig, CodeInvalidConfig,
		details, position.Span{}, nil)
}

func IncompatibleLanguage(constraint, version string) *CompilerError {
	return NewCompilerError(CategoryConfig, CodeIncompatibleLang,
		fmt.Sprintf("project requires language %s, compiler is %s", constraint, version),
		position.Span{}, map[string]interface{}{"constraint": constraint, "version": version})
}

func UnsupportedBackend(backend, what string) *CompilerError {
	return NewCompilerError(CategoryCodegen, CodeUnsupportedBackend,
		fmt.Sprintf("%s backend: %s", backend, what),
		position.Span{}, map[string]interface{}{"backend": backend})
}
