// Package dispatcher implements the request dispatcher (C4): it
// decodes an operation name and argument bytes, resolves the name
// against a target's methods, invokes, and returns a typed response
// envelope.
//
// It generalizes the teacher's server/service.go, which only scanned
// for a fixed (receiver, *Args, *Reply) error method shape (the
// net/rpc convention). Operations here keep their natural Go
// signature — any number of typed arguments, an optional typed
// result, and a trailing error — decoded and encoded through the
// descriptor-driven codec instead of a hardcoded Args/Reply pair.
// Overload resolution by name mirrors
// original_source/.../server/handler/Request.java: since Go forbids
// two methods with the same name on a type, "first match wins" is
// automatically satisfied rather than needing explicit enforcement.
package dispatcher

import (
	"fmt"
	"io"
	"reflect"

	"github.com/vladaeloaiei/byteremote/codec"
	"github.com/vladaeloaiei/byteremote/descriptor"
	"github.com/vladaeloaiei/byteremote/envelope"
	"github.com/vladaeloaiei/byteremote/rpcerr"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type operation struct {
	fn         reflect.Value
	argTypes   []reflect.Type
	returnType reflect.Type // nil means the operation is Void
}

// Dispatcher resolves operation names against one bound target.
type Dispatcher struct {
	ops map[string]*operation
}

// New scans target's exported methods for the dispatcher's supported
// shapes: `func(args...) error` (Void) or `func(args...) (T, error)`.
// Methods of any other shape are skipped, the same "best effort scan,
// ignore what doesn't fit" stance the teacher's RegisterMethods takes.
func New(target any) *Dispatcher {
	v := reflect.ValueOf(target)
	t := v.Type()

	ops := make(map[string]*operation, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		name := t.Method(i).Name
		fn := v.Method(i)
		ft := fn.Type()

		if ft.NumOut() == 0 || ft.NumOut() > 2 {
			continue
		}
		if ft.Out(ft.NumOut() - 1) != errorType {
			continue
		}

		var returnType reflect.Type
		if ft.NumOut() == 2 {
			returnType = ft.Out(0)
		}

		argTypes := make([]reflect.Type, ft.NumIn())
		for j := 0; j < ft.NumIn(); j++ {
			argTypes[j] = ft.In(j)
		}

		ops[name] = &operation{fn: fn, argTypes: argTypes, returnType: returnType}
	}

	return &Dispatcher{ops: ops}
}

// Dispatch implements §4.4: decode the operation name, look it up,
// decode its arguments in order, invoke, and build the response
// envelope.
func (d *Dispatcher) Dispatch(r io.Reader) (envelope.Response, error) {
	bc := &codec.BinaryCodec{}

	nameVal, err := bc.Decode(r, reflect.TypeOf(""))
	if err != nil {
		return envelope.Response{}, err
	}
	name := nameVal.String()

	op, ok := d.ops[name]
	if !ok {
		return envelope.Response{}, rpcerr.Wrap(rpcerr.ErrUnknownOperation, false)
	}

	args := make([]reflect.Value, len(op.argTypes))
	for i, argType := range op.argTypes {
		v, err := bc.Decode(r, argType)
		if err != nil {
			return envelope.Response{}, err
		}
		args[i] = v
	}

	results := op.fn.Call(args)
	errVal := results[len(results)-1]
	if !errVal.IsNil() {
		cause := errVal.Interface().(error)
		return envelope.Response{}, rpcerr.Wrap(fmt.Errorf("%w: %v", rpcerr.ErrInvocationFailure, cause), false)
	}

	if op.returnType == nil {
		return envelope.VoidResponse(), nil
	}

	desc, err := descriptor.Describe(op.returnType)
	if err != nil {
		return envelope.Response{}, err
	}
	return envelope.Response{Desc: desc, Value: results[0]}, nil
}
