package utils

import (
	"testing"
)

func TestGeneratePIN(t *testing.T) {
	for i := 0; i < 50; i++ {
		pin, err := GeneratePIN()
		if err != nil {
			t.Fatalf("GeneratePIN() failed: %v", err)
		}
		if !ValidatePIN(pin) {
			t.Fatalf("GeneratePIN() returned invalid pin %q", pin)
		}
		if pin < "100000" || pin > "999999" {
			t.Errorf("PIN %s is not within valid range (100000-999999)", pin)
		}
	}
}

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		pin      string
		expected bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"12345a", false},
		{"", false},
		{"١٢٣٤٥٦", false}, // non-ASCII digits
	}

	for _, test := range tests {
		if got := ValidatePIN(test.pin); got != test.expected {
			t.Errorf("ValidatePIN(%q) = %v, expected %v", test.pin, got, test.expected)
		}
	}
}

func TestPINMatches(t *testing.T) {
	if !PINMatches("123456", "123456") {
		t.Error("expected identical pins to match")
	}
	if PINMatches("123456", "654321") {
		t.Error("expected different pins not to match")
	}
	if PINMatches("", "") {
		t.Error("an unset pin must never match")
	}
}
