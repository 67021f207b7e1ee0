package usecase

import "testing"

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "   ", want: nil},
		{name: "single without terminator", in: "The system shall log in users", want: []string{"The system shall log in users"}},
		{
			name: "mixed terminators",
			in:   "The system shall be fast.  Is it secure?\nIt must be!\tDone.",
			want: []string{"The system shall be fast.", "Is it secure?", "It must be!", "Done."},
		},
		{name: "no whitespace after period", in: "Version 2.5 is required.", want: []string{"Version 2.5 is required."}},
		{name: "abbreviation is split", in: "Use e.g. SSO for login.", want: []string{"Use e.g.", "SSO for login."}},
		{name: "repeated terminators", in: "Really?! Yes.", want: []string{"Really?!", "Yes."}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitSentences(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("SplitSentences() = %q, want %q", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("SplitSentences()[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}
