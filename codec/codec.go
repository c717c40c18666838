// Package codec implements the type-directed binary codec (C1): the
// serializer/deserializer that streams value graphs into the compact
// byte format described by the runtime's data model, and reconstructs
// them on the other side from a reflect.Type the receiver already
// knows. A secondary JSON codec is kept for the same reasons the
// teacher repo keeps one — a human-readable fallback format, selected
// through CodecType and GetCodec. No codec type byte is written to the
// wire.
package codec

import (
	"io"
	"reflect"
)

// CodecType identifies the wire serialization format, exactly as in the
// teacher's codec package.
type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

// Codec is the common serialization contract. Encode writes v to w;
// Decode reads exactly the corresponding bytes from r and reconstructs
// a value of type t.
type Codec interface {
	Encode(w io.Writer, v reflect.Value) error
	Decode(r io.Reader, t reflect.Type) (reflect.Value, error)
	Type() CodecType
}

// GetCodec resolves a CodecType to its Codec implementation. Unknown
// types fall back to BinaryCodec, mirroring the teacher's GetCodec.
func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}
	return &BinaryCodec{}
}
