package textproc

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "newlines become spaces",
			in:   "line one\r\nline two\nline three",
			want: "lineonelinetwolinethree",
		},
		{
			name: "spaced email is reassembled",
			in:   "contact: jane.doe @ company . com for details",
			want: "contact: jane.doe@company.comfordetails",
		},
		{
			name: "per-character extraction spacing",
			in:   "J a n e D o e",
			want: "JaneDoe",
		},
		{
			name: "whitespace runs collapse and trim",
			in:   "   alpha ,  beta   ",
			want: "alpha , beta",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"j a n e . d o e @ c o m p a n y . c o m",
		"Senior Engineer\nGo, Postgres, Kubernetes",
		"   spaced   out   text   ",
		"plain",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestExtractEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"reach me at jane.doe@company.com today", "jane.doe@company.com"},
		{"first a@b.co then c@d.io", "a@b.co"},
		{"john_smith+jobs@sub.example.org", "john_smith+jobs@sub.example.org"},
		{"no address here", EmailNotFound},
		{"", EmailNotFound},
		{"broken@domain", EmailNotFound},
	}
	for _, tc := range cases {
		if got := ExtractEmail(tc.in); got != tc.want {
			t.Errorf("ExtractEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractEmailAfterNormalize(t *testing.T) {
	raw := "J a n e D o e\njane.doe @ company . com"
	got := ExtractEmail(Normalize(raw))
	if got != "jane.doe@company.com" {
		t.Fatalf("got %q, want jane.doe@company.com", got)
	}
}

func TestDisplayNameFromFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"jane_doe-resume.pdf", "jane doe resume"},
		{"John__Smith.pdf", "John Smith"},
		{"resume.pdf", "resume"},
		{"archive.tar.gz", "archive.tar"},
		{"---.pdf", FallbackName},
		{".pdf", FallbackName},
	}
	for _, tc := range cases {
		if got := DisplayNameFromFilename(tc.in); got != tc.want {
			t.Errorf("DisplayNameFromFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
