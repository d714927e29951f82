package utils

import (
	"reflect"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"https://Example.com/path?utm_source=test&x=1": "https://example.com/path?x=1",
		"example.com/a#section":                        "https://example.com/a",
		"http://user:pw@Host.example:8080/b?b=2&a=1":   "http://host.example:8080/b?a=1&b=2",
		"https://Bücher.example/x":                     "https://xn--bcher-kva.example/x",
	}
	for in, want := range cases {
		got, err := NormalizeURL(in)
		if err != nil {
			t.Fatalf("NormalizeURL(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractLinks(t *testing.T) {
	text := "Crash log at https://paste.example/abc, screenshot (https://img.example/s.png).\n" +
		"Again: https://PASTE.example/abc"
	got := ExtractLinks(text)
	want := []string{"https://paste.example/abc", "https://img.example/s.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractLinks = %v, want %v", got, want)
	}
	if links := ExtractLinks("no links here"); len(links) != 0 {
		t.Fatalf("expected no links, got %v", links)
	}
}
