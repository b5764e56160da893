// Package publisher contains the registry of publisher domains that the
// dispatcher redirects traffic to.
package publisher

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// Domain is a single publisher domain.
type Domain struct {
	// Host is the hostname of the publisher site, without a scheme or a
	// trailing dot.  It must not be empty.
	Host string

	// InvertedLang shows that the site's native language is English rather
	// than Portuguese.  For such domains the absence of an explicit language
	// selection implies an English path prefix.
	InvertedLang bool
}

// type check
var _ validate.Interface = (*Domain)(nil)

// Validate implements the [validate.Interface] interface for *Domain.
func (d *Domain) Validate() (err error) {
	if d == nil {
		return errors.ErrNoValue
	}

	return validate.NotEmpty("host", d.Host)
}

// Registry is an immutable ordered collection of publisher domains.  The
// order is significant: the fallback selection path walks the registry in
// order, and the round-robin spill path indexes into it.
type Registry struct {
	index   map[string]*Domain
	domains []*Domain
}

// NewRegistry returns a new registry of the given domains.  The order of
// domains is preserved.  All domains must be valid and have unique hosts.
func NewRegistry(domains []*Domain) (r *Registry, err error) {
	err = validate.NotEmptySlice("domains", domains)
	if err != nil {
		return nil, err
	}

	r = &Registry{
		index:   make(map[string]*Domain, len(domains)),
		domains: make([]*Domain, 0, len(domains)),
	}

	for i, d := range domains {
		err = d.Validate()
		if err != nil {
			return nil, fmt.Errorf("at index %d: %w", i, err)
		}

		if _, ok := r.index[d.Host]; ok {
			return nil, fmt.Errorf("at index %d: duplicate host %q", i, d.Host)
		}

		r.index[d.Host] = d
		r.domains = append(r.domains, d)
	}

	return r, nil
}

// Len returns the number of domains in the registry.
func (r *Registry) Len() (n int) {
	return len(r.domains)
}

// At returns the domain at index i.  It panics if i is out of range.
func (r *Registry) At(i int) (d *Domain) {
	return r.domains[i]
}

// Hosts returns the hostnames of all domains in the registry order.  The
// returned slice must not be modified.
func (r *Registry) Hosts() (hosts []string) {
	hosts = make([]string, len(r.domains))
	for i, d := range r.domains {
		hosts[i] = d.Host
	}

	return hosts
}

// Lookup returns the domain with the given host, if any.
func (r *Registry) Lookup(host string) (d *Domain, ok bool) {
	d, ok = r.index[host]

	return d, ok
}

// Default returns the built-in registry of publisher domains.  The order is
// the historical serving order and must not be changed without coordinating
// with the traffic team.
func Default() (r *Registry) {
	return errors.Must(NewRegistry([]*Domain{{
		Host: "useuapp.com",
	}, {
		Host:         "appmobile4u.com",
		InvertedLang: true,
	}, {
		Host: "appsdenoticias.com",
	}, {
		Host: "melhoresapps.net",
	}}))
}
