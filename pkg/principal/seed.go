package principal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Principals []Principal `yaml:"principals"`
}

// LoadSeedFile reads principals from a YAML document of the form
//
//	principals:
//	  - id: 1
//	    username: admin
//	    email: admin@example.com
//	    roles: [admin]
func LoadSeedFile(path string) ([]Principal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read principals file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse principals file: %w", err)
	}
	return f.Principals, nil
}
