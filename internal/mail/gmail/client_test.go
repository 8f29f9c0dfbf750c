package gmail

import (
	"strings"
	"testing"

	"sift/internal/mail"
)

func TestSentMessageID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0bd6f2df-08a6-4a22-9a2b-8f0a4a3e9f11", "0bd6f2df-08a6-4a22-9a2b-8f0a4a3e9f11@sift.invalid"},
		{"  wf.42  ", "wf.42@sift.invalid"},
		{"key with spaces!", "key-with-spaces-@sift.invalid"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sentMessageID(tc.in); got != tc.want {
			t.Errorf("sentMessageID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEncodeOutboundStampsMessageID(t *testing.T) {
	out := mail.Outbound{
		To:        []string{"alice@example.com"},
		Subject:   "Re: invoice",
		InReplyTo: "<orig-123@example.com>",
		Body:      "On it.",
	}
	raw := encodeOutbound(out, sentMessageID("wf-123"))

	for _, want := range []string{
		"To: alice@example.com\r\n",
		"Message-ID: <wf-123@sift.invalid>\r\n",
		"In-Reply-To: <orig-123@example.com>\r\n",
		"References: <orig-123@example.com>\r\n",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("outbound payload missing %q:\n%s", want, raw)
		}
	}
	if !strings.HasSuffix(raw, "\r\n\r\nOn it.") {
		t.Errorf("body not separated from headers:\n%s", raw)
	}

	// Restarts rebuild the message verbatim, so a Sent search by the
	// stamped id can stand in for the in-memory dedup cache.
	if again := encodeOutbound(out, sentMessageID("wf-123")); again != raw {
		t.Error("encoding is not deterministic for the same idempotency key")
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"receipts", "Receipts"},
		{"  newsletters  ", "Newsletters"},
		{"VIP", "VIP"},
		{"Work Travel", "Work Travel"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := displayName(tc.in); got != tc.want {
			t.Errorf("displayName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
