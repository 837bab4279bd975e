package services

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"beacon/internal/domain/models"
)

//go:embed contacts.yaml
var defaultContacts []byte

type contactDirectoryFile struct {
	Contacts []models.EmergencyContact `yaml:"contacts"`
}

// LoadContactDirectory reads the emergency contact list from path, or the
// built-in Indian helpline list when path is empty.
func LoadContactDirectory(path string) ([]models.EmergencyContact, error) {
	data := defaultContacts
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read contact directory: %w", err)
		}
	}
	return ParseContactDirectory(data)
}

// ParseContactDirectory decodes a YAML contact directory
func ParseContactDirectory(data []byte) ([]models.EmergencyContact, error) {
	var file contactDirectoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse contact directory: %w", err)
	}
	for i, c := range file.Contacts {
		if c.Name == "" || c.Number == "" {
			return nil, fmt.Errorf("contact %d: name and number are required", i)
		}
	}
	return file.Contacts, nil
}
