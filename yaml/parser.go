package yaml

import (
	"fmt"
	"os"

	"github.com/lagrangedao/go-computing-market/internal/models"
	"gopkg.in/yaml.v2"
)

const ManifestVersion = "1.0"

// ProviderManifest describes a provider registration in a file so it can be
// versioned next to the service that backs the endpoint.
type ProviderManifest struct {
	Version  string                     `yaml:"version"`
	Provider models.RegisterProviderReq `yaml:"provider"`
}

func (pm *ProviderManifest) checkRequired() error {
	if pm.Provider.Name == "" {
		return fmt.Errorf("provider.name is required")
	}
	if pm.Provider.Endpoint == "" {
		return fmt.Errorf("provider.endpoint is required")
	}
	if len(pm.Provider.Capabilities) <= 0 {
		return fmt.Errorf("at least one capability must be defined")
	}
	return nil
}

type Parser interface {
	Parse(yamlFile []byte) error
	GetConfig() interface{}
}

type ParserManifestV1 struct {
	config ProviderManifest
}

func (p *ParserManifestV1) Parse(yamlFile []byte) error {
	var manifest ProviderManifest
	if err := yaml.UnmarshalStrict(yamlFile, &manifest); err != nil {
		return err
	}
	if err := manifest.checkRequired(); err != nil {
		return err
	}
	p.config = manifest
	return nil
}

func (p *ParserManifestV1) GetConfig() interface{} {
	return p.config
}

type Version struct {
	Version string `yaml:"version"`
}

func getYAMLFileVersion(yamlFile []byte) (string, error) {
	var version Version
	err := yaml.Unmarshal(yamlFile, &version)
	if err != nil {
		return "", err
	}
	return version.Version, nil
}

// ParseProviderManifest decodes a manifest into a registration request.
func ParseProviderManifest(yamlFile []byte) (models.RegisterProviderReq, error) {
	version, err := getYAMLFileVersion(yamlFile)
	if err != nil {
		return models.RegisterProviderReq{}, fmt.Errorf("failed unable to parse YAML file, %w", err)
	}

	switch version {
	case ManifestVersion:
		parser := &ParserManifestV1{}
		if err = parser.Parse(yamlFile); err != nil {
			return models.RegisterProviderReq{}, fmt.Errorf("failed unable to parse provider manifest, %w", err)
		}
		return parser.config.Provider, nil
	default:
		return models.RegisterProviderReq{}, fmt.Errorf("not support manifest version: %q", version)
	}
}

func LoadProviderManifest(yamlFilePath string) (models.RegisterProviderReq, error) {
	yamlFile, err := os.ReadFile(yamlFilePath)
	if err != nil {
		return models.RegisterProviderReq{}, fmt.Errorf("failed unable to read file, %w", err)
	}
	return ParseProviderManifest(yamlFile)
}
