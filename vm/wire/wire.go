// Package wire implements the program file format: the CBOR envelope an
// external compiler uses to hand Vireo a compiled instruction stream.
package wire

import (
	"fmt"
	"os"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/vireo-lang/vireo/vm"
)

// FormatVersion is the current program file format version.
const FormatVersion uint32 = 1

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Wire-level types
// ---------------------------------------------------------------------------

// Program is the serialized form of a compiled program. Native callables
// never appear on the wire; the embedder installs them into globals after
// linking.
type Program struct {
	FormatVersion uint32         `cbor:"version"`
	Entry         string         `cbor:"entry"`
	Functions     []Function     `cbor:"functions"`
	Globals       map[string]any `cbor:"globals,omitempty"`
}

// Function is the serialized form of one interpreted function.
type Function struct {
	Name         string        `cbor:"name"`
	Params       []string      `cbor:"params,omitempty"`
	NumLocals    int           `cbor:"locals"`
	Instructions []Instruction `cbor:"instructions"`
	Constants    []any         `cbor:"constants,omitempty"`
}

// Instruction is the serialized form of one instruction.
type Instruction struct {
	Op     string `cbor:"op"`
	Arg    int    `cbor:"arg,omitempty"`
	HasArg bool   `cbor:"hasarg,omitempty"`
}

// ---------------------------------------------------------------------------
// Marshal / Unmarshal
// ---------------------------------------------------------------------------

// Marshal serializes a Program to CBOR bytes.
func Marshal(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// Unmarshal deserializes a Program from CBOR bytes and validates its format
// version.
func Unmarshal(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("wire: unmarshal program: %w", err)
	}
	if p.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("wire: unsupported format version %d (want %d)",
			p.FormatVersion, FormatVersion)
	}
	return &p, nil
}

// ReadFile loads and unmarshals a program file.
func ReadFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wire: cannot read %s: %w", path, err)
	}
	return Unmarshal(data)
}

// WriteFile marshals a program and writes it to a file.
func WriteFile(path string, p *Program) error {
	data, err := Marshal(p)
	if err != nil {
		return fmt.Errorf("wire: marshal program: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("wire: cannot write %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Linking
// ---------------------------------------------------------------------------

// Linked is a program converted to vm types: all functions share one globals
// map, seeded with the wire globals and every function by name.
type Linked struct {
	Entry     string
	Functions map[string]*vm.Function
	Globals   map[string]vm.Value
}

// FunctionNames returns the linked function names in sorted order, for
// stable listings.
func (l *Linked) FunctionNames() []string {
	names := make([]string, 0, len(l.Functions))
	for name := range l.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntryFunction returns the program's entry function.
func (l *Linked) EntryFunction() (*vm.Function, error) {
	fn, ok := l.Functions[l.Entry]
	if !ok {
		return nil, fmt.Errorf("wire: entry function %q not defined", l.Entry)
	}
	return fn, nil
}

// Build converts a wire program into linked vm functions.
func (p *Program) Build() (*Linked, error) {
	globals := make(map[string]vm.Value, len(p.Functions)+len(p.Globals))
	functions := make(map[string]*vm.Function, len(p.Functions))

	for name, v := range p.Globals {
		globals[name] = normalizeConstant(v)
	}

	for _, wf := range p.Functions {
		if wf.Name == "" {
			return nil, fmt.Errorf("wire: function with empty name")
		}
		if _, dup := functions[wf.Name]; dup {
			return nil, fmt.Errorf("wire: duplicate function %q", wf.Name)
		}
		fn := &vm.Function{
			Name:         wf.Name,
			Params:       wf.Params,
			NumLocals:    wf.NumLocals,
			Instructions: make([]vm.Instruction, len(wf.Instructions)),
			Constants:    make([]vm.Value, len(wf.Constants)),
			Globals:      globals,
		}
		if fn.NumLocals < len(fn.Params) {
			fn.NumLocals = len(fn.Params)
		}
		for i, wi := range wf.Instructions {
			fn.Instructions[i] = vm.Instruction{Op: wi.Op, Arg: wi.Arg, HasArg: wi.HasArg}
		}
		for i, c := range wf.Constants {
			fn.Constants[i] = normalizeConstant(c)
		}
		functions[wf.Name] = fn
		globals[wf.Name] = fn
	}

	if p.Entry != "" {
		if _, ok := functions[p.Entry]; !ok {
			return nil, fmt.Errorf("wire: entry function %q not defined", p.Entry)
		}
	}

	return &Linked{Entry: p.Entry, Functions: functions, Globals: globals}, nil
}

// FromFunctions builds a wire program from vm functions, for tooling that
// writes program files.
func FromFunctions(entry string, fns []*vm.Function) *Program {
	p := &Program{
		FormatVersion: FormatVersion,
		Entry:         entry,
		Functions:     make([]Function, 0, len(fns)),
	}
	for _, fn := range fns {
		wf := Function{
			Name:         fn.Name,
			Params:       fn.Params,
			NumLocals:    fn.NumLocals,
			Instructions: make([]Instruction, len(fn.Instructions)),
			Constants:    make([]any, len(fn.Constants)),
		}
		for i, inst := range fn.Instructions {
			wf.Instructions[i] = Instruction{Op: inst.Op, Arg: inst.Arg, HasArg: inst.HasArg}
		}
		for i, c := range fn.Constants {
			wf.Constants[i] = c
		}
		p.Functions = append(p.Functions, wf)
	}
	return p
}

// normalizeConstant maps CBOR-decoded values onto the vm value model:
// integers become int64, interface slices become []vm.Value.
func normalizeConstant(v any) vm.Value {
	switch x := v.(type) {
	case uint64:
		return int64(x)
	case int:
		return int64(x)
	case int64, float64, string, bool, nil:
		return x
	case float32:
		return float64(x)
	case []any:
		list := make([]vm.Value, len(x))
		for i, elem := range x {
			list[i] = normalizeConstant(elem)
		}
		return list
	default:
		return v
	}
}
