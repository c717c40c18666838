// Package envelope defines the request/response shapes that travel
// between a channel and the dispatcher. It replaces the teacher's fixed
// RPCMessage struct (ServiceMethod/Payload/Error triple) with the
// descriptor-driven envelopes the data model calls for: a request is an
// operation name plus undecoded argument bytes, a response is a
// descriptor-typed value that may be Void.
package envelope

import (
	"reflect"

	"github.com/vladaeloaiei/byteremote/descriptor"
)

// Request is the transient, server-side envelope a channel hands to the
// dispatcher. ArgBytes holds the whole received message — the operation
// name as the leading Utf8String slot, followed by the encoded
// arguments — and the dispatcher decodes both from it. Operation is not
// filled in by the server loop.
type Request struct {
	Operation string
	ArgBytes  []byte
}

// Response is what the dispatcher returns to the server loop. Void
// mirrors a return-descriptor of Void: the loop must suppress any
// reply entirely rather than send an encoded absent value.
type Response struct {
	Desc  descriptor.Descriptor
	Value reflect.Value
	Void  bool
}

// VoidResponse builds the distinguished no-reply response.
func VoidResponse() Response {
	return Response{Void: true}
}
