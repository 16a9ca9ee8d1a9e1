package normalize

import "testing"

func TestNumber(t *testing.T) {
	cases := []struct {
		name         string
		raw          string
		allowed      []string
		defaultCode  string
		wantCountry  string
		wantLocal    string
	}{
		{
			name:        "exact allowed prefix",
			raw:         "+91 98765 43210",
			allowed:     []string{"91", "1"},
			defaultCode: "91",
			wantCountry: "91",
			wantLocal:   "9876543210",
		},
		{
			name:        "longest prefix wins over shorter overlapping code",
			raw:         "447911123456",
			allowed:     []string{"44", "4"},
			defaultCode: "91",
			wantCountry: "44",
			wantLocal:   "7911123456",
		},
		{
			name:        "falls back to default code when no allowed prefix matches",
			raw:         "919876543210",
			allowed:     []string{"1", "44"},
			defaultCode: "91",
			wantCountry: "91",
			wantLocal:   "9876543210",
		},
		{
			name:        "short number with no match falls back to default country code",
			raw:         "9876543210",
			allowed:     []string{"1", "44"},
			defaultCode: "91",
			wantCountry: "91",
			wantLocal:   "9876543210",
		},
		{
			name:        "strips non digit characters before matching",
			raw:         "+91-98765-43210",
			allowed:     []string{"91"},
			defaultCode: "91",
			wantCountry: "91",
			wantLocal:   "9876543210",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Number(c.raw, c.allowed, c.defaultCode)
			if got.CountryCode != c.wantCountry || got.LocalMobile != c.wantLocal {
				t.Errorf("Number(%q) = %+v, want country=%q local=%q", c.raw, got, c.wantCountry, c.wantLocal)
			}
		})
	}
}

func TestFullNumber(t *testing.T) {
	if got := FullNumber("91", "9876543210"); got != "919876543210" {
		t.Errorf("FullNumber = %q, want 919876543210", got)
	}
}
