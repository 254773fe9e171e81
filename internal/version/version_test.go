package version

import "testing"

func TestTag(t *testing.T) {
	old := Number
	defer func() { Number = old }()

	Number = "1.2.3"
	if got, want := Tag(), "v3toss/1.2.3"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
