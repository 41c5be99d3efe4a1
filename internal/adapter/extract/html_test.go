package extract

import "testing"

func TestExtractText(t *testing.T) {
	e := NewHTMLExtractor()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "just text", "just text"},
		{"paragraphs", "<p>First</p><p>Second &amp; third</p>", "First Second & third"},
		{"script dropped", "<div>Hello<script>var x = 1;</script> world</div>", "Hello world"},
		{"style dropped", "<style>p{color:red}</style><p>Body</p>", "Body"},
		{"inline", "<p>a <b>bold</b> move</p>", "a bold move"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.ExtractText(tc.in); got != tc.want {
				t.Errorf("ExtractText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
