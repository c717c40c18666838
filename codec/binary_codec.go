package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"unicode/utf8"

	"github.com/vladaeloaiei/byteremote/descriptor"
	"github.com/vladaeloaiei/byteremote/rpcerr"
)

// BinaryCodec is the descriptor-driven wire codec (C1). Unlike the
// teacher's original BinaryCodec — which only ever knew how to
// serialize one hardcoded RPCMessage struct — this one walks an
// arbitrary reflect.Value against a descriptor.Descriptor built from
// its type, following the byte layout from
// original_source/.../Serializer.java: a leading null tag on every
// slot except primitive array elements, then the primitive body,
// length-prefixed UTF-8 text, length-prefixed arrays, and
// concatenated field slots for records.
type BinaryCodec struct{}

func (c *BinaryCodec) Type() CodecType { return CodecTypeBinary }

// Encode writes v's wire representation to w, describing v's type on
// the fly via descriptor.Describe.
func (c *BinaryCodec) Encode(w io.Writer, v reflect.Value) error {
	d, err := descriptor.Describe(v.Type())
	if err != nil {
		return err
	}
	return encodeSlot(w, d, v, 0)
}

// Decode reads one value of type t from r.
func (c *BinaryCodec) Decode(r io.Reader, t reflect.Type) (reflect.Value, error) {
	d, err := descriptor.Describe(t)
	if err != nil {
		return reflect.Value{}, err
	}
	return decodeSlot(r, d, t, 0)
}

// encodeSlot writes one nullable value slot: a null tag, and — when
// present — the body for d's kind.
func encodeSlot(w io.Writer, d descriptor.Descriptor, v reflect.Value, depth int) error {
	if depth > descriptor.MaxDepth {
		return rpcerr.Malformedf(rpcerr.ErrDepthExceeded, "depth %d", depth)
	}

	if isNilValue(v) {
		_, err := w.Write([]byte{1})
		return err
	}

	if _, err := w.Write([]byte{0}); err != nil {
		return err
	}
	return encodeBody(w, d, indirect(v), depth)
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	default:
		return false
	}
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

func encodeBody(w io.Writer, d descriptor.Descriptor, v reflect.Value, depth int) error {
	switch d.Kind {
	case descriptor.KindBool:
		return writePrimitive(w, v.Bool())
	case descriptor.KindI8:
		if v.Kind() == reflect.Uint8 {
			return writePrimitive(w, uint8(v.Uint()))
		}
		return writePrimitive(w, int8(v.Int()))
	case descriptor.KindU16Char:
		return writePrimitive(w, uint16(v.Uint()))
	case descriptor.KindI16:
		return writePrimitive(w, int16(v.Int()))
	case descriptor.KindI32:
		return writePrimitive(w, int32(v.Int()))
	case descriptor.KindI64:
		return writePrimitive(w, v.Int())
	case descriptor.KindF32:
		return writePrimitive(w, float32(v.Float()))
	case descriptor.KindF64:
		return writePrimitive(w, v.Float())
	case descriptor.KindUtf8String:
		return encodeString(w, v.String())
	case descriptor.KindArray:
		return encodeArray(w, *d.Elem, v, depth)
	case descriptor.KindRecord:
		return encodeRecord(w, d, v, depth)
	default:
		return fmt.Errorf("codec: unsupported descriptor kind %d", d.Kind)
	}
}

func writePrimitive(w io.Writer, v any) error {
	return binary.Write(w, binary.BigEndian, v)
}

func encodeString(w io.Writer, s string) error {
	if !utf8.ValidString(s) {
		return rpcerr.Malformedf(rpcerr.ErrInvalidText, "%q", s)
	}
	if err := writePrimitive(w, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func encodeArray(w io.Writer, elemDesc descriptor.Descriptor, v reflect.Value, depth int) error {
	n := v.Len()
	if err := writePrimitive(w, int32(n)); err != nil {
		return err
	}

	if elemDesc.IsPrimitive() {
		// Primitive array elements carry no per-element null tag.
		for i := 0; i < n; i++ {
			if err := encodeBody(w, elemDesc, v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for i := 0; i < n; i++ {
		if err := encodeSlot(w, elemDesc, v.Index(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func encodeRecord(w io.Writer, d descriptor.Descriptor, v reflect.Value, depth int) error {
	for _, f := range d.Fields {
		if f.Immutable {
			continue
		}
		if err := encodeSlot(w, f.Desc, v.FieldByName(f.Name), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// decodeSlot reads one nullable value slot for a target Go type t.
func decodeSlot(r io.Reader, d descriptor.Descriptor, t reflect.Type, depth int) (reflect.Value, error) {
	if depth > descriptor.MaxDepth {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrDepthExceeded, "depth %d", depth)
	}

	tag, err := readTag(r)
	if err != nil {
		return reflect.Value{}, err
	}

	isPtr := t.Kind() == reflect.Ptr
	elemType := t
	if isPtr {
		elemType = t.Elem()
	}

	if tag == 1 {
		if d.IsPrimitive() && !isPtr {
			return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrNullPrimitive, "descriptor %s", d)
		}
		return reflect.Zero(t), nil
	}

	body, err := decodeBody(r, d, elemType, depth)
	if err != nil {
		return reflect.Value{}, err
	}

	if isPtr {
		ptr := reflect.New(elemType)
		ptr.Elem().Set(body)
		return ptr, nil
	}
	return body, nil
}

func readTag(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, rpcerr.Malformedf(rpcerr.ErrUnexpectedEnd, "reading null tag: %v", err)
	}
	if buf[0] != 0 && buf[0] != 1 {
		return 0, rpcerr.Malformedf(rpcerr.ErrMalformedTag, "got %d", buf[0])
	}
	return buf[0], nil
}

func decodeBody(r io.Reader, d descriptor.Descriptor, t reflect.Type, depth int) (reflect.Value, error) {
	switch d.Kind {
	case descriptor.KindBool:
		var b bool
		if err := binary.Read(r, binary.BigEndian, &b); err != nil {
			return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrUnexpectedEnd, "%v", err)
		}
		return reflect.ValueOf(b).Convert(t), nil
	case descriptor.KindI8:
		var i int8
		return reflectConvert(r, &i, t)
	case descriptor.KindU16Char:
		var u uint16
		return reflectConvert(r, &u, t)
	case descriptor.KindI16:
		var s int16
		return reflectConvert(r, &s, t)
	case descriptor.KindI32:
		var i int32
		return reflectConvert(r, &i, t)
	case descriptor.KindI64:
		var i int64
		return reflectConvert(r, &i, t)
	case descriptor.KindF32:
		var f float32
		return reflectConvert(r, &f, t)
	case descriptor.KindF64:
		var f float64
		return reflectConvert(r, &f, t)
	case descriptor.KindUtf8String:
		return decodeString(r, t)
	case descriptor.KindArray:
		return decodeArray(r, *d.Elem, t, depth)
	case descriptor.KindRecord:
		return decodeRecord(r, d, t, depth)
	default:
		return reflect.Value{}, fmt.Errorf("codec: unsupported descriptor kind %d", d.Kind)
	}
}

// reflectConvert reads a fixed-width primitive into ptr and converts it
// to the caller's concrete target type t (e.g. wire I32 into a Go
// `int`, or wire I8 into a Go `byte`).
func reflectConvert(r io.Reader, ptr any, t reflect.Type) (reflect.Value, error) {
	if err := binary.Read(r, binary.BigEndian, ptr); err != nil {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrUnexpectedEnd, "%v", err)
	}
	return reflect.ValueOf(ptr).Elem().Convert(t), nil
}

func decodeString(r io.Reader, t reflect.Type) (reflect.Value, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrUnexpectedEnd, "reading string length: %v", err)
	}
	if n < 0 {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrMalformedLength, "string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrUnexpectedEnd, "reading %d string bytes: %v", n, err)
	}
	if !utf8.Valid(buf) {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrInvalidText, "%d bytes", n)
	}
	return reflect.ValueOf(string(buf)).Convert(t), nil
}

func decodeArray(r io.Reader, elemDesc descriptor.Descriptor, t reflect.Type, depth int) (reflect.Value, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrUnexpectedEnd, "reading array length: %v", err)
	}
	if n < 0 {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrMalformedLength, "array length %d", n)
	}

	elemType := t.Elem()
	out := reflect.MakeSlice(reflect.SliceOf(elemType), int(n), int(n))

	if elemDesc.IsPrimitive() {
		for i := 0; i < int(n); i++ {
			v, err := decodeBody(r, elemDesc, elemType, depth+1)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(v)
		}
		return out, nil
	}

	for i := 0; i < int(n); i++ {
		v, err := decodeSlot(r, elemDesc, elemType, depth+1)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func decodeRecord(r io.Reader, d descriptor.Descriptor, t reflect.Type, depth int) (reflect.Value, error) {
	zero, err := descriptor.Zero(t)
	if err != nil {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrUnconstructibleRecord, "%v", err)
	}

	for _, f := range d.Fields {
		if f.Immutable {
			continue
		}
		field := zero.FieldByName(f.Name)
		v, err := decodeSlot(r, f.Desc, field.Type(), depth+1)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("codec: field %s: %w", f.Name, err)
		}
		field.Set(v)
	}
	return zero, nil
}
