package codegen

// BuiltinFunctions contains the intrinsics a backend lowers to C library
// calls, keyed by their synth name.
var BuiltinFunctions = map[string]BuiltinFunction{
	"printf": {
		Name:       "printf",
		ReturnType: "i32",
		Parameters: []BuiltinParameter{
			{Name: "value", Type: "i32|f32|string"},
		},
		AssemblyName: "printf",
	},
}

// BuiltinFunction represents a built-in function definition
type BuiltinFunction struct {
	Name         string
	ReturnType   string
	Parameters   []BuiltinParameter
	AssemblyName string
}

// BuiltinParameter represents a parameter of a built-in function
type BuiltinParameter struct {
	Name string
	Type string
}

// IsBuiltinFunction checks if a function name is a built-in function
func IsBuiltinFunction(name string) bool {
	_, exists := BuiltinFunctions[name]
	return exists
}

// GetBuiltinFunction returns the built-in function definition
func GetBuiltinFunction(name string) (BuiltinFunction, bool) {
	fn, exists := BuiltinFunctions[name]
	return fn, exists
}

// valueClass is the storage class of a slot as the backends see it.
type valueClass int

const (
	classInt valueClass = iota
	classFloat
	classString
)

// printfFormat returns the C format printing one value of class c the
// way the interpreter's printf does, newline included.
func printfFormat(c valueClass) string {
	switch c {
	case classFloat:
		return "%g\n"
	case classString:
		return "%s\n"
	default:
		return "%d\n"
	}
}
