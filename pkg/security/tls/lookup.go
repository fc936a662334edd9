package tls

import (
	"crypto/tls"
	"strings"
)

// CertLookupTree maps host names to certificates. Keys are either exact
// names ("www.example.com") or leftmost wildcards ("*.example.com"). A
// wildcard matches exactly one label, so "*.example.com" matches
// "a.example.com" but neither "example.com" nor "a.b.example.com".
//
// The first certificate added under a key wins. The tree is populated at
// startup and only read afterwards.
type CertLookupTree struct {
	exact    map[string]*tls.Certificate
	wildcard map[string]*tls.Certificate // keyed by the suffix after "*."
}

// NewCertLookupTree creates an empty tree.
func NewCertLookupTree() *CertLookupTree {
	return &CertLookupTree{
		exact:    make(map[string]*tls.Certificate),
		wildcard: make(map[string]*tls.Certificate),
	}
}

// Add indexes cert under hostname. It returns false when the key is
// already present or the hostname is not usable as a key.
func (t *CertLookupTree) Add(hostname string, cert *tls.Certificate) bool {
	name := normalizeHostname(hostname)
	if name == "" {
		return false
	}

	m, key := t.exact, name
	if strings.HasPrefix(name, "*.") {
		m, key = t.wildcard, name[2:]
		if key == "" || strings.Contains(key, "*") {
			return false
		}
	} else if strings.Contains(name, "*") {
		// Partial-label wildcards such as "w*.example.com" are not indexed.
		return false
	}

	if _, exists := m[key]; exists {
		return false
	}
	m[key] = cert
	return true
}

// Lookup returns the certificate for hostname, preferring an exact match
// over a wildcard. It returns nil when nothing matches.
func (t *CertLookupTree) Lookup(hostname string) *tls.Certificate {
	name := normalizeHostname(hostname)
	if name == "" {
		return nil
	}

	if cert, ok := t.exact[name]; ok {
		return cert
	}

	i := strings.IndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return nil
	}
	return t.wildcard[name[i+1:]]
}

// Len returns the number of keys in the tree.
func (t *CertLookupTree) Len() int {
	return len(t.exact) + len(t.wildcard)
}

func normalizeHostname(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}
