// Package directory maps chat identities to merchant API credentials and
// back. The table is built once at startup from a JSON file and never
// mutates, so lookups are lock-free.
package directory

import (
	"encoding/json"
	"fmt"
	"os"
)

// Directory is the immutable credential table: each identity belongs to at
// most one credential; each credential has an ordered list of enrolled
// identities (the notification recipient set).
type Directory struct {
	byIdentity   map[string]string
	byCredential map[string][]string
}

// New builds a Directory from a credential → identities table. Identities
// are kept in the order given; an identity listed under several credentials
// keeps the first one seen.
func New(table map[string][]string) *Directory {
	d := &Directory{
		byIdentity:   make(map[string]string),
		byCredential: make(map[string][]string, len(table)),
	}
	for credential, identities := range table {
		for _, id := range identities {
			if id == "" {
				continue
			}
			if _, ok := d.byIdentity[id]; !ok {
				d.byIdentity[id] = credential
			}
			d.byCredential[credential] = append(d.byCredential[credential], id)
		}
	}
	return d
}

// LoadFile reads a credential table from a JSON file of the form
// {"credential": ["identity", ...], ...}.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read credential table %s: %w", path, err)
	}
	var table map[string][]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("cannot parse credential table %s: %w", path, err)
	}
	return New(table), nil
}

// CredentialFor returns the API credential for a chat identity, or
// ("", false) if the identity is not enrolled.
func (d *Directory) CredentialFor(identity string) (string, bool) {
	credential, ok := d.byIdentity[identity]
	return credential, ok
}

// IdentitiesFor returns the identities enrolled under a credential, in
// enrollment order. Unknown credentials yield an empty list, not an error.
func (d *Directory) IdentitiesFor(credential string) []string {
	return d.byCredential[credential]
}

// Credentials returns the number of distinct credentials in the table.
func (d *Directory) Credentials() int { return len(d.byCredential) }

// Identities returns the number of enrolled identities.
func (d *Directory) Identities() int { return len(d.byIdentity) }
