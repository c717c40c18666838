package dispatcher

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/vladaeloaiei/byteremote/codec"
	"github.com/vladaeloaiei/byteremote/rpcerr"
)

type echoTarget struct{}

func (echoTarget) Echo(s string) (string, error) {
	return s, nil
}

func (echoTarget) Ping() error {
	return nil
}

func (echoTarget) Boom() (int32, error) {
	return 0, errors.New("kaboom")
}

func encodeCall(t *testing.T, op string, args ...any) *bytes.Buffer {
	t.Helper()
	bc := &codec.BinaryCodec{}
	var buf bytes.Buffer
	if err := bc.Encode(&buf, reflect.ValueOf(op)); err != nil {
		t.Fatalf("encoding operation name failed: %v", err)
	}
	for _, a := range args {
		if err := bc.Encode(&buf, reflect.ValueOf(a)); err != nil {
			t.Fatalf("encoding arg failed: %v", err)
		}
	}
	return &buf
}

func TestDispatchEchoReturnsValue(t *testing.T) {
	d := New(echoTarget{})
	resp, err := d.Dispatch(encodeCall(t, "Echo", "hi"))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if resp.Void {
		t.Fatal("Echo should not be Void")
	}
	if resp.Value.String() != "hi" {
		t.Errorf("got %q, want %q", resp.Value.String(), "hi")
	}
}

func TestDispatchVoidOperation(t *testing.T) {
	d := New(echoTarget{})
	resp, err := d.Dispatch(encodeCall(t, "Ping"))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !resp.Void {
		t.Fatal("Ping should be Void")
	}
}

func TestDispatchUnknownOperation(t *testing.T) {
	d := New(echoTarget{})
	_, err := d.Dispatch(encodeCall(t, "NoSuchOp"))
	if !errors.Is(err, rpcerr.ErrUnknownOperation) {
		t.Errorf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestDispatchInvocationFailure(t *testing.T) {
	d := New(echoTarget{})
	_, err := d.Dispatch(encodeCall(t, "Boom"))
	if !errors.Is(err, rpcerr.ErrInvocationFailure) {
		t.Errorf("expected ErrInvocationFailure, got %v", err)
	}
}
