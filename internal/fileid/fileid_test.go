package fileid

import "testing"

func TestNewShape(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		id := New()
		if len(id) != Length {
			t.Fatalf("expected %d characters, got %d (%q)", Length, len(id), id)
		}
		for _, c := range id {
			if c < 'a' || c > 'z' {
				t.Fatalf("identifier %q contains non-lowercase character %q", id, c)
			}
		}
	}
}

func TestNewDoesNotRepeatImmediately(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		id := New()
		if _, dup := seen[id]; dup {
			t.Fatalf("identifier %q generated twice in 500 draws", id)
		}
		seen[id] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"baaatgwcatfnckpi", true},
		{"abcdefghijklmnop", true},
		{"", false},
		{"short", false},
		{"baaatgwcatfnckp1", false},
		{"Baaatgwcatfnckpi", false},
		{"baaatgwcatfnckpix", false},
	}
	for _, c := range cases {
		if got := Valid(c.in); got != c.want {
			t.Errorf("Valid(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
