package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"+100", "100.00", true},
		{"-50", "-50.00", true},
		{"- 50.5", "-50.50", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"1.004", "1.00", true},
		{"-1.005", "-1.01", true},
		{" 2.50 ", "2.50", true},
		{".5", "0.50", true},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"1.", "", false},
		{"1 000", "", false},
		{"", "", false},
		{"+", "", false},
		{"999999999999999.99", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error, got %s", tc.in, got)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%q expected validation error, got %v", tc.in, err)
			}
		}
	}
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	sum := MustMoney("0.10").Add(MustMoney("0.20"))
	if !sum.Equal(MustMoney("0.30")) || sum.String() != "0.30" {
		t.Fatalf("0.10 + 0.20 = %s", sum)
	}

	var total Money
	for i := 0; i < 1000; i++ {
		total = total.Add(MustMoney("0.01"))
	}
	if total.String() != "10.00" || total.Cents() != 1000 {
		t.Fatalf("expected 10.00, got %s", total)
	}
}

func TestMoneyCentsRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, -1, 12345, -5000, maxCents} {
		if got := MoneyFromCents(cents).Cents(); got != cents {
			t.Fatalf("cents %d round-tripped to %d", cents, got)
		}
	}
	if s := MoneyFromCents(-5000).Signed(); s != "-50.00" {
		t.Fatalf("unexpected signed form %q", s)
	}
	if s := MoneyFromCents(10000).Signed(); s != "+100.00" {
		t.Fatalf("unexpected signed form %q", s)
	}
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("1,5")
	if err != nil || q.String() != "1.5" {
		t.Fatalf("expected 1.5, got %s (err=%v)", q, err)
	}
	for _, bad := range []string{"0", "-1", "x", ""} {
		if _, err := ParseQuantity(bad); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("%q expected ErrInvalidQuantity, got %v", bad, err)
		}
	}
}
