package ptrx_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/ptrx"
)

func TestValueAndStringValue(t *testing.T) {
	if ptrx.StringValue(nil) != "" || ptrx.StringValue(ptrx.String("a")) != "a" {
		t.Fatalf("StringValue mismatch")
	}
	if ptrx.Value[int](nil) != 0 || ptrx.Value(ptrx.To(7)) != 7 {
		t.Fatalf("Value mismatch")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	if ptrx.Clone[time.Time](nil) != nil {
		t.Fatalf("Clone(nil) must be nil")
	}

	orig := ptrx.Time(time.Unix(100, 0))
	cp := ptrx.Clone(orig)
	*cp = time.Unix(200, 0)
	if orig.Unix() != 100 {
		t.Fatalf("Clone aliased the original")
	}
}
