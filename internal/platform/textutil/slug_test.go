package textutil

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Elektronik", "elektronik"},
		{"turkish letters", "Giyim & Ayakkabı", "giyim-ayakkabi"},
		{"dotted capital i", "İç Giyim", "ic-giyim"},
		{"diacritics", "Çocuk Oyuncakları", "cocuk-oyuncaklari"},
		{"collapsing separators", "  Ev --  Yaşam  ", "ev-yasam"},
		{"digits kept", "4K Televizyonlar", "4k-televizyonlar"},
		{"empty", "   ", ""},
	}

	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("%s: Slugify(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}
