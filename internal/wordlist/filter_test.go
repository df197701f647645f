package wordlist

import "testing"

func TestAccept(t *testing.T) {
	if !Accept("hello") {
		t.Fatalf("expected hello to be accepted")
	}
	for _, word := range []string{"", "Hello", "résumé", "naïve", "don’t", "co-op", "a1"} {
		if Accept(word) {
			t.Fatalf("expected %q to be rejected", word)
		}
	}
}
