package envelope

import (
	"reflect"
	"testing"

	"github.com/vladaeloaiei/byteremote/descriptor"
)

func TestVoidResponse(t *testing.T) {
	r := VoidResponse()
	if !r.Void {
		t.Fatal("VoidResponse should have Void set")
	}
}

func TestResponseCarriesValue(t *testing.T) {
	r := Response{
		Desc:  descriptor.Descriptor{Kind: descriptor.KindI32},
		Value: reflect.ValueOf(int32(7)),
	}
	if r.Void {
		t.Fatal("response with a value should not be Void")
	}
	if r.Value.Interface().(int32) != 7 {
		t.Fatalf("got %v, want 7", r.Value.Interface())
	}
}
