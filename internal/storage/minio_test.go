package storage

import "testing"

func TestPublicURLAndObjectKeyRoundTrip(t *testing.T) {
	c := &Client{bucketName: "resumes", publicBaseURL: "https://files.example.com"}

	key := "incoming/abc-123.pdf"
	link := c.PublicURL(key)
	if link != "https://files.example.com/resumes/incoming/abc-123.pdf" {
		t.Fatalf("unexpected public url: %s", link)
	}

	if got := c.ObjectKeyFromLink(link); got != key {
		t.Fatalf("ObjectKeyFromLink(%q) = %q, want %q", link, got, key)
	}
}

func TestObjectKeyFromLinkRejectsForeignLinks(t *testing.T) {
	c := &Client{bucketName: "resumes", publicBaseURL: "https://files.example.com"}

	cases := []string{
		"",
		"https://files.example.com/other-bucket/key.pdf",
		"https://files.example.com/resumes/../etc/passwd",
		"://bad-url",
	}
	for _, link := range cases {
		if got := c.ObjectKeyFromLink(link); got != "" {
			t.Errorf("ObjectKeyFromLink(%q) = %q, want empty", link, got)
		}
	}
}
