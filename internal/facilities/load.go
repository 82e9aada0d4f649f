package facilities

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type directoryFile struct {
	Facilities []Facility `yaml:"facilities"`
}

// LoadFile reads a YAML facility directory of the form
//
//	facilities:
//	  - name: Hospital Central
//	    latitude: -34.60
//	    longitude: -58.38
//	    intake_uri: http://central.example:8000
func LoadFile(path string) ([]Facility, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc directoryFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, f := range doc.Facilities {
		if f.Name == "" {
			return nil, fmt.Errorf("%s: facility #%d has no name", path, i+1)
		}
	}
	return doc.Facilities, nil
}
