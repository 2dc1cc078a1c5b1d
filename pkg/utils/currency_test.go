package utils

import "testing"

func TestParseCurrencyCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"USD", "USD", false},
		{" eur ", "EUR", false},
		{"zar", "ZAR", false},
		{"XYZ", "", true},
		{"US", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCurrencyCode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCurrencyCode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCurrencyCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCurrencySymbol(t *testing.T) {
	tests := map[string]string{
		"ZAR": "R",
		"usd": "$",
		"EUR": "€",
		"INR": "₹",
		"MUR": "MUR",
	}
	for code, want := range tests {
		if got := CurrencySymbol(code); got != want {
			t.Errorf("CurrencySymbol(%q) = %q, want %q", code, got, want)
		}
	}
}
