// Package vm implements the Flan bytecode virtual machine: a stack
// machine with a per-call-frame local window, a global symbol table,
// and a generational mark-and-sweep heap manager.
//
// The package is organized the way the interpreter actually runs:
// value.go and object.go define the data model, gc.go owns allocation
// and collection, stack.go and callframe.go define the runtime's two
// stacks, image.go decodes the on-disk binary image, and interpreter.go
// drives the fetch-decode-execute loop over it. errors.go is the single
// place fatal conditions are reported and the process exits.
package vm
