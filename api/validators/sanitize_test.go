package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "trims", input: "  Free Coffee  ", max: 120, want: "Free Coffee"},
		{name: "folds whitespace", input: "Free\n\tCoffee", max: 120, want: "Free Coffee"},
		{name: "drops control chars", input: "Free\x00Coffee", max: 120, want: "Free Coffee"},
		{name: "caps runes not bytes", input: "Café crème", max: 4, want: "Café"},
		{name: "no trailing space at cap", input: "Free Coffee", max: 5, want: "Free"},
		{name: "unbounded", input: "Pastry", max: 0, want: "Pastry"},
		{name: "blank", input: " \n ", max: 10, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.max); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.want)
			}
		})
	}
}
