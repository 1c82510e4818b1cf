package util

import "testing"

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	in := "ab\x00cd\x01\x02\n\txy"
	out := SanitizeText(in)
	if out != "abcd\n\txy" {
		t.Fatalf("unexpected sanitized output: %q", out)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "Quantum  Computing\n  with\tNoisy   Qubits"
	out := CollapseWhitespace(in)
	if out != "Quantum Computing with Noisy Qubits" {
		t.Fatalf("unexpected collapsed output: %q", out)
	}
}

func TestDisplaySnippetTruncates(t *testing.T) {
	in := "Hello\x00   world \n of papers"
	out := DisplaySnippet(in, 11)
	if out != "Hello world..." {
		t.Fatalf("unexpected snippet: %q", out)
	}
	if full := DisplaySnippet(in, 100); full != "Hello world of papers" {
		t.Fatalf("unexpected full snippet: %q", full)
	}
}
