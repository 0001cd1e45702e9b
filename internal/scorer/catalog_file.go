package scorer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk YAML layout.
type catalogFile struct {
	Lures Catalog `yaml:"lures"`
}

// LoadCatalogFile reads and validates a YAML lure catalog.
func LoadCatalogFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML lure catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "scorer: parse catalog")
	}
	if err := ValidateCatalog(f.Lures); err != nil {
		return nil, err
	}
	return f.Lures, nil
}

// MarshalCatalog encodes c in the layout LoadCatalogFile reads.
func MarshalCatalog(c Catalog) ([]byte, error) {
	data, err := yaml.Marshal(catalogFile{Lures: c})
	if err != nil {
		return nil, eris.Wrap(err, "scorer: marshal catalog")
	}
	return data, nil
}
