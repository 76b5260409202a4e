// Package vm implements the Vireo virtual machine.
//
// This package contains:
//   - Flat instruction model (opcode name + optional operand)
//   - Heap-resident execution contexts with explicit caller/callee links
//   - The dispatch engine and its call/return scheduling protocol
//   - The synchronous native-call bridge
//   - A cooperative task loop driving independent call chains
package vm
