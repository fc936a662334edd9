package tls

import (
	"crypto/tls"
	"testing"
)

func TestCertLookupTree(t *testing.T) {
	exact := &tls.Certificate{}
	wild := &tls.Certificate{}
	other := &tls.Certificate{}

	tree := NewCertLookupTree()
	if !tree.Add("www.example.com", exact) {
		t.Fatal("Add exact failed")
	}
	if !tree.Add("*.example.com", wild) {
		t.Fatal("Add wildcard failed")
	}
	if !tree.Add("mail.example.org", other) {
		t.Fatal("Add unrelated exact failed")
	}

	tests := []struct {
		name string
		host string
		want *tls.Certificate
	}{
		{name: "exact", host: "www.example.com", want: exact},
		{name: "exact wins over wildcard", host: "WWW.EXAMPLE.COM", want: exact},
		{name: "wildcard", host: "api.example.com", want: wild},
		{name: "wildcard trailing dot", host: "api.example.com.", want: wild},
		{name: "wildcard needs a label", host: "example.com", want: nil},
		{name: "wildcard is one label", host: "a.b.example.com", want: nil},
		{name: "other exact", host: "mail.example.org", want: other},
		{name: "unrelated", host: "example.org", want: nil},
		{name: "exact is not a suffix", host: "x.mail.example.org", want: nil},
		{name: "empty", host: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tree.Lookup(tt.host); got != tt.want {
				t.Errorf("Lookup(%q) = %p, want %p", tt.host, got, tt.want)
			}
		})
	}
}

func TestCertLookupTree_AddRules(t *testing.T) {
	first := &tls.Certificate{}
	second := &tls.Certificate{}

	tree := NewCertLookupTree()
	tree.Add("a.example", first)
	if tree.Add("A.example", second) {
		t.Error("duplicate key should not be added")
	}
	if tree.Lookup("a.example") != first {
		t.Error("earlier entry was overwritten")
	}

	for _, bad := range []string{"", "*.", "w*.example.com", "*.*.example.com"} {
		if tree.Add(bad, first) {
			t.Errorf("Add(%q) succeeded, want rejection", bad)
		}
	}

	if tree.Len() != 1 {
		t.Errorf("Len = %d, want 1", tree.Len())
	}
}
