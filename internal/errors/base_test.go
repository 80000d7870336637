package errors

import "testing"

func TestWrap(t *testing.T) {
	err := Wrap(errWrapped, "Hello, Wrapped!")
	if err.Error() != "Hello, Wrapped!, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(errWrapped, "credential %s", "abc")
	if err.Error() != "credential abc, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}

	if Wrapf(nil, "credential %s", "abc") != nil {
		t.Fatal("wrapping nil should stay nil")
	}
}

func TestIs(t *testing.T) {
	err := Wrap(errWrapped, "outer")
	if !Is(err, errWrapped) {
		t.Fatalf("wrapped sentinel not found: %+v", err)
	}
}
