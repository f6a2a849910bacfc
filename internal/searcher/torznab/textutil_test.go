package torznab

import "testing"

func TestParseHumanSize(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"1 B", 1},
		{"1 KB", 1024},
		{"1 MB", 1024 * 1024},
		{"1 GB", 1024 * 1024 * 1024},
		{"1 TB", 1024 * 1024 * 1024 * 1024},
		{"", 0},
		{"   ", 0},
		{"12345", 12345},
		{"abc GB", 0},
		{"-5 MB", 0},
		{"0 MB", 0},
		{"1 gb", 1024 * 1024 * 1024},
	}
	for _, tc := range cases {
		if got := parseHumanSize(tc.input); got != tc.want {
			t.Errorf("parseHumanSize(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestParseHumanSizeFractional(t *testing.T) {
	got := parseHumanSize("1.5 GB")
	want := int64(1610612736)
	if got != want {
		t.Errorf("parseHumanSize(\"1.5 GB\") = %d, want %d", got, want)
	}
}

func TestParseHumanSizeCommaDecimal(t *testing.T) {
	got := parseHumanSize("1,5 GB")
	want := int64(1610612736)
	if got != want {
		t.Errorf("parseHumanSize(\"1,5 GB\") = %d, want %d", got, want)
	}
}

func TestCleanHTMLText(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"<b>Hello</b> <i>World</i>", "Hello World"},
		{"", ""},
		{"   hello   world   ", "hello world"},
		{"Hello &amp; World &lt;test&gt;", "Hello & World"},
		{"<div><span>Nested</span> <a href='#'>Content</a></div>", "Nested Content"},
		{"Just plain text", "Just plain text"},
		{"<br><br><br>text<br><br>", "text"},
	}
	for _, tc := range cases {
		if got := cleanHTMLText(tc.input); got != tc.want {
			t.Errorf("cleanHTMLText(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
