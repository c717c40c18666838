package codec

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"reflect"

	"github.com/vladaeloaiei/byteremote/rpcerr"
)

// JSONCodec uses the standard library encoding/json for serialization,
// the same human-readable fallback format the teacher repo offers
// alongside its binary codec. Each value is framed with a 4-byte
// big-endian length prefix so it composes with tcpchannel/udpchannel
// the same way BinaryCodec's output does.
type JSONCodec struct{}

func (c *JSONCodec) Type() CodecType { return CodecTypeJSON }

func (c *JSONCodec) Encode(w io.Writer, v reflect.Value) error {
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (c *JSONCodec) Decode(r io.Reader, t reflect.Type) (reflect.Value, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrUnexpectedEnd, "reading JSON length: %v", err)
	}
	if n < 0 {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrMalformedLength, "JSON length %d", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return reflect.Value{}, rpcerr.Malformedf(rpcerr.ErrUnexpectedEnd, "reading %d JSON bytes: %v", n, err)
	}

	out := reflect.New(t)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return out.Elem(), nil
}
