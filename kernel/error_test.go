package kernel

import "testing"

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "buddy_alloc",
		Message: "out of memory",
	}

	if err.Error() != err.Message {
		t.Fatalf("expected err.Error() to return %q; got %q", err.Message, err.Error())
	}

	if exp, got := "[buddy_alloc] out of memory", err.String(); got != exp {
		t.Fatalf("expected err.String() to return %q; got %q", exp, got)
	}
}
