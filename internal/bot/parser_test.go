package bot

import (
	"errors"
	"testing"

	"tally/internal/core"
)

func TestParseAmountLine(t *testing.T) {
	cases := []struct {
		in       string
		match    bool
		amount   string
		label    string
		quantity string
	}{
		{"+100", true, "100.00", "", ""},
		{"-50.5", true, "-50.50", "", ""},
		{"- 50", true, "-50.00", "", ""},
		{"+12,5 coffee 3", true, "12.50", "coffee", "3"},
		{"+5 beer", true, "5.00", "beer", ""},
		{"-1.005 fee 0,5", true, "-1.01", "fee", "0.5"},
		{"  +7  ", true, "7.00", "", ""},
		{"100", false, "", "", ""},
		{"hello", false, "", "", ""},
		{"+5 beer 3 extra", false, "", "", ""},
		{"+5 beer three", false, "", "", ""},
		{"+1e3", false, "", "", ""},
	}
	for _, tc := range cases {
		line, ok, err := ParseAmountLine(tc.in)
		if ok != tc.match {
			t.Fatalf("%q: match = %v, want %v", tc.in, ok, tc.match)
		}
		if !tc.match {
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if line.Amount.String() != tc.amount || line.Label != tc.label {
			t.Fatalf("%q: got %s %q", tc.in, line.Amount, line.Label)
		}
		gotQty := ""
		if line.Quantity != nil {
			gotQty = line.Quantity.String()
		}
		if gotQty != tc.quantity {
			t.Fatalf("%q: quantity %q, want %q", tc.in, gotQty, tc.quantity)
		}
	}
}

func TestParseAmountLineRejectsBadValues(t *testing.T) {
	for _, in := range []string{"+0", "-0.001", "+5 beer 0", "+999999999999999.99", "+7 - 2", "+7 -"} {
		_, ok, err := ParseAmountLine(in)
		if !ok {
			t.Fatalf("%q should be recognized as an entry", in)
		}
		if !errors.Is(err, core.ErrValidation) {
			t.Fatalf("%q: expected validation error, got %v", in, err)
		}
	}
}

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("/Report@tally_bot 5")
	if !ok || cmd.Name != "report" || cmd.Arg(0) != "5" || cmd.Arg(1) != "" {
		t.Fatalf("unexpected command %+v (ok=%v)", cmd, ok)
	}
	cmd, ok = ParseCommand("/addop Big Bob")
	if !ok || cmd.Rest(0) != "Big Bob" || cmd.Rest(2) != "" {
		t.Fatalf("unexpected rest %+v", cmd)
	}
	if cmd, _ := ParseCommand("/summary ALL"); !cmd.scopeAll() {
		t.Fatal("expected all scope")
	}
	for _, in := range []string{"", "/", "/@bot", "hello", "+100"} {
		if _, ok := ParseCommand(in); ok {
			t.Fatalf("%q should not parse as a command", in)
		}
	}
}

func TestParsePositiveCaps(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"5", 5, true},
		{"100", 100, true},
		{"150", 100, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"ten", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePositive(tt.in, 100)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("parsePositive(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMessageLink(t *testing.T) {
	if got := messageLink(-1001234567890, 42); got != "https://t.me/c/1234567890/42" {
		t.Fatalf("unexpected link %q", got)
	}
	if got := messageLink(-4242, 42); got != "" {
		t.Fatalf("basic groups have no links, got %q", got)
	}
	if got := messageLink(-1001234567890, 0); got != "" {
		t.Fatalf("no message, got %q", got)
	}
}
