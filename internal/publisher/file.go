package publisher

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// domainConfig is the on-disk form of a single registry entry.
type domainConfig struct {
	// Host is the hostname of the publisher site.
	Host string `yaml:"host"`

	// InvertedLang shows that the site's native language is English.
	InvertedLang bool `yaml:"inverted_lang"`
}

// LoadRegistry reads a registry of publisher domains from the YAML file at
// path.  The file is a sequence of entries with a required host and an
// optional inverted_lang flag; the file order becomes the registry order.
func LoadRegistry(path string) (r *Registry, err error) {
	// #nosec G304 -- Trust the path to the registry file that is given from
	// the environment.
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	var conf []*domainConfig
	err = yaml.Unmarshal(yamlFile, &conf)
	if err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}

	domains := make([]*Domain, 0, len(conf))
	for _, dc := range conf {
		domains = append(domains, &Domain{
			Host:         dc.Host,
			InvertedLang: dc.InvertedLang,
		})
	}

	r, err = NewRegistry(domains)
	if err != nil {
		return nil, fmt.Errorf("registry file %q: %w", path, err)
	}

	return r, nil
}
