package provision

import "testing"

func TestParseSelector(t *testing.T) {
	cases := []struct {
		in    string
		match []Version
		miss  []Version
	}{
		{"3.x", []Version{{3, 8, 0}, {3, 13, 1}}, []Version{{2, 7, 18}}},
		{"", []Version{{3, 12, 0}}, []Version{{4, 0, 0}}},
		{"3", []Version{{3, 0, 0}}, []Version{{2, 7, 0}}},
		{"3.12", []Version{{3, 12, 0}, {3, 12, 9}}, []Version{{3, 11, 9}}},
		{"3.12.x", []Version{{3, 12, 4}}, []Version{{3, 13, 0}}},
		{"3.12.4", []Version{{3, 12, 4}}, []Version{{3, 12, 5}}},
	}
	for _, c := range cases {
		sel, err := ParseSelector(c.in)
		if err != nil {
			t.Fatalf("ParseSelector(%q): %v", c.in, err)
		}
		for _, v := range c.match {
			if !sel.Matches(v) {
				t.Fatalf("%q should match %s", c.in, v)
			}
		}
		for _, v := range c.miss {
			if sel.Matches(v) {
				t.Fatalf("%q should not match %s", c.in, v)
			}
		}
	}
}

func TestParseSelectorRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"x", "3.x.1", "three", "3.12.4.1", "-1", "3..1"} {
		if _, err := ParseSelector(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestSelectorExact(t *testing.T) {
	s, _ := ParseSelector("3.12.4")
	if !s.Exact() {
		t.Fatalf("3.12.4 should be exact")
	}
	s, _ = ParseSelector("3.x")
	if s.Exact() {
		t.Fatalf("3.x should not be exact")
	}
}

func TestParseVersionOutput(t *testing.T) {
	cases := map[string]Version{
		"Python 3.12.4\n":    {3, 12, 4},
		"Python 3.13.0rc1":   {3, 13, 0},
		"Python 2.7":         {2, 7, 0},
		"  Python 3.9.18  ": {3, 9, 18},
	}
	for in, want := range cases {
		got, err := ParseVersionOutput(in)
		if err != nil || got != want {
			t.Fatalf("ParseVersionOutput(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseVersionOutput("bash: python: command not found"); err == nil {
		t.Fatalf("expected error for garbage output")
	}
}

func TestVersionLess(t *testing.T) {
	if !(Version{3, 11, 9}).Less(Version{3, 12, 0}) {
		t.Fatalf("3.11.9 < 3.12.0")
	}
	if (Version{3, 12, 0}).Less(Version{3, 12, 0}) {
		t.Fatalf("equal versions are not less")
	}
}
