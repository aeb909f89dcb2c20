package urlutil

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestBaseURL_AddsSingleTrailingSlash(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		scheme := rapid.SampledFrom([]string{"http", "https", "HTTPS"}).Draw(rt, "scheme")
		host := fmt.Sprintf("%s.%s:%d",
			rapid.StringMatching(`[a-z]{3,12}`).Draw(rt, "host"),
			rapid.StringMatching(`[a-z]{2,8}`).Draw(rt, "tld"),
			rapid.IntRange(1024, 9999).Draw(rt, "port"),
		)
		path := rapid.SampledFrom([]string{"", "/", "//", "/app", "/app/"}).Draw(rt, "path")

		got, err := BaseURL(" " + scheme + "://" + host + path + "?q=1 ")
		if err != nil {
			rt.Fatalf("BaseURL: %v", err)
		}
		if !strings.HasSuffix(got, "/") || strings.HasSuffix(got, "//") {
			rt.Fatalf("want exactly one trailing slash, got %s", got)
		}
		if !strings.HasPrefix(got, strings.ToLower(scheme)+"://"+host) {
			rt.Fatalf("origin changed: %s", got)
		}
		if strings.Contains(got, "?") {
			rt.Fatalf("query kept: %s", got)
		}
	})
}

func TestBaseURL_RejectsNonHTTP(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.test", "digital-rx-pro.test", "http://", "chrome://settings"} {
		if got, err := BaseURL(raw); err == nil {
			t.Errorf("BaseURL(%q) = %q, want error", raw, got)
		}
	}
}

func TestOrigin(t *testing.T) {
	cases := map[string]string{
		"http://digital-rx-pro.s3-website-us-east-1.amazonaws.com/":            "http://digital-rx-pro.s3-website-us-east-1.amazonaws.com",
		"http://127.0.0.1:43123/doctor/rx":                                       "http://127.0.0.1:43123",
		"HTTPS://Example.test/app/":                                              "https://Example.test",
		"not a url/":                                                             "not a url",
	}
	for in, want := range cases {
		if got := Origin(in); got != want {
			t.Errorf("Origin(%q) = %q, want %q", in, got, want)
		}
	}
}
