// Package descriptor implements the value-descriptor model that drives
// the codec (C1). A descriptor describes the wire shape of a value —
// primitive, string, array, or record — independently of any particular
// in-memory representation, the way the RPC protocol's codec expects.
//
// Descriptors are normally obtained by reflecting over a Go type via
// Describe, which plays the role of the "descriptor introspection"
// host collaborator: given a type, it enumerates primitive kinds,
// element descriptors for arrays/slices, and (name, descriptor,
// immutable) triples for struct fields, in declaration order.
package descriptor

import (
	"fmt"
	"reflect"
	"sync"
)

// Kind identifies which variant of the descriptor a Descriptor holds.
type Kind byte

const (
	KindBool Kind = iota
	KindI8
	KindU16Char
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindUtf8String
	KindArray
	KindRecord
)

// MaxDepth is the maximum descriptor-directed recursion depth allowed
// during encode and decode. Composite values nested deeper than this
// are a hard error on both sides.
const MaxDepth = 20

// FieldDescriptor describes one named field of a Record in declaration
// order. Immutable fields participate in descriptor construction (so
// both sides agree on field count and ordering) but are skipped by the
// codec on encode and left at their zero value on decode.
type FieldDescriptor struct {
	Name      string
	Desc      Descriptor
	Immutable bool
}

// Descriptor is the closed wire-shape variant set from the data model:
// a primitive kind, Utf8String, Array(Elem), or Record(Fields).
type Descriptor struct {
	Kind   Kind
	Elem   *Descriptor       // set iff Kind == KindArray
	Fields []FieldDescriptor // set iff Kind == KindRecord
}

// IsPrimitive reports whether d describes one of the eight fixed-width
// primitive kinds.
func (d Descriptor) IsPrimitive() bool {
	return d.Kind <= KindF64
}

// PrimitiveSize returns the encoded body size in bytes for a primitive
// descriptor. It panics if d is not primitive — callers must check
// IsPrimitive first, same contract as the rest of this package.
func (d Descriptor) PrimitiveSize() int {
	switch d.Kind {
	case KindBool, KindI8:
		return 1
	case KindU16Char, KindI16:
		return 2
	case KindI32, KindF32:
		return 4
	case KindI64, KindF64:
		return 8
	default:
		panic(fmt.Sprintf("descriptor: PrimitiveSize called on non-primitive kind %d", d.Kind))
	}
}

// String renders a Descriptor for diagnostics.
func (d Descriptor) String() string {
	switch d.Kind {
	case KindBool:
		return "Bool"
	case KindI8:
		return "I8"
	case KindU16Char:
		return "U16Char"
	case KindI16:
		return "I16"
	case KindI32:
		return "I32"
	case KindI64:
		return "I64"
	case KindF32:
		return "F32"
	case KindF64:
		return "F64"
	case KindUtf8String:
		return "Utf8String"
	case KindArray:
		return fmt.Sprintf("Array(%s)", d.Elem.String())
	case KindRecord:
		return fmt.Sprintf("Record(%d fields)", len(d.Fields))
	default:
		return "Unknown"
	}
}

var cache sync.Map // reflect.Type -> Descriptor

// Describe builds the wire-shape Descriptor for a Go type, memoizing
// the result per reflect.Type. Struct fields are walked in declaration
// order (the order spec'd by the peer) and tagged immutable via the
// `byteremote:"immutable"` struct tag — the Go analogue of the Java
// source's `Modifier.isFinal` check, since Go has no field-level
// "final" modifier to inspect at runtime.
func Describe(t reflect.Type) (Descriptor, error) {
	if cached, ok := cache.Load(t); ok {
		return cached.(Descriptor), nil
	}

	d, err := describe(t, 0)
	if err != nil {
		return Descriptor{}, err
	}
	cache.Store(t, d)
	return d, nil
}

func describe(t reflect.Type, depth int) (Descriptor, error) {
	if depth > MaxDepth {
		return Descriptor{}, fmt.Errorf("descriptor: type %s nests past depth %d", t, MaxDepth)
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Bool:
		return Descriptor{Kind: KindBool}, nil
	case reflect.Int8, reflect.Uint8:
		return Descriptor{Kind: KindI8}, nil
	case reflect.Uint16:
		return Descriptor{Kind: KindU16Char}, nil
	case reflect.Int16:
		return Descriptor{Kind: KindI16}, nil
	case reflect.Int32, reflect.Int:
		return Descriptor{Kind: KindI32}, nil
	case reflect.Int64:
		return Descriptor{Kind: KindI64}, nil
	case reflect.Float32:
		return Descriptor{Kind: KindF32}, nil
	case reflect.Float64:
		return Descriptor{Kind: KindF64}, nil
	case reflect.String:
		return Descriptor{Kind: KindUtf8String}, nil
	case reflect.Slice, reflect.Array:
		elemDesc, err := describe(t.Elem(), depth+1)
		if err != nil {
			return Descriptor{}, err
		}
		return Descriptor{Kind: KindArray, Elem: &elemDesc}, nil
	case reflect.Struct:
		return describeStruct(t, depth)
	default:
		return Descriptor{}, fmt.Errorf("descriptor: unsupported kind %s for type %s", t.Kind(), t)
	}
}

func describeStruct(t reflect.Type, depth int) (Descriptor, error) {
	fields := make([]FieldDescriptor, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			// Unexported field: no getter/setter a peer could address.
			continue
		}

		fieldDesc, err := describe(f.Type, depth+1)
		if err != nil {
			return Descriptor{}, fmt.Errorf("descriptor: field %s.%s: %w", t.Name(), f.Name, err)
		}

		fields = append(fields, FieldDescriptor{
			Name:      f.Name,
			Desc:      fieldDesc,
			Immutable: isImmutable(f),
		})
	}
	return Descriptor{Kind: KindRecord, Fields: fields}, nil
}

func isImmutable(f reflect.StructField) bool {
	tag, ok := f.Tag.Lookup("byteremote")
	if !ok {
		return false
	}
	for _, part := range splitTag(tag) {
		if part == "immutable" {
			return true
		}
	}
	return false
}

func splitTag(tag string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			parts = append(parts, tag[start:i])
			start = i + 1
		}
	}
	return parts
}

// Zero allocates the zero-argument instance a Record descriptor needs
// on decode. Go structs always admit a zero value, so this only fails
// when t isn't addressable as a struct at all — the Go realization of
// the Java source's UnconstructibleRecord error, kept for descriptors
// assembled by hand rather than via Describe.
func Zero(t reflect.Type) (reflect.Value, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("descriptor: %s has no zero-argument record constructor", t)
	}
	return reflect.New(t).Elem(), nil
}
