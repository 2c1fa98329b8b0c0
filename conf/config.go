package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lagrangedao/go-computing-market/constants"
)

const ConfigFile = "config.toml"

var config *MarketNode

// MarketNode is a market gateway config
type MarketNode struct {
	API    API
	DB     DB
	Redis  Redis
	Market Market
	Sweep  Sweep
}

type API struct {
	Port      int
	Domain    string
	CrtFile   string
	KeyFile   string
	RateLimit float64
	RateBurst int
}

type DB struct {
	Path string
}

type Redis struct {
	Url      string
	Password string
}

type Market struct {
	Admin               string
	CommunityPool       string
	CommunityFeePercent uint64
	DefaultJobTimeout   uint64
	HeartbeatTimeout    uint64
	Denom               string
}

type Sweep struct {
	Schedule string
}

func InitConfig(repoPath string) error {
	cfg, err := LoadConfig(repoPath)
	if err != nil {
		return err
	}
	config = cfg
	return nil
}

// LoadConfig decodes <repoPath>/config.toml without touching the global config.
func LoadConfig(repoPath string) (*MarketNode, error) {
	configFile := filepath.Join(repoPath, ConfigFile)

	var cfg MarketNode
	metaData, err := toml.DecodeFile(configFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed load config file, path: %s, error: %w", configFile, err)
	}
	if err = requiredFieldsAreGiven(metaData); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configFile, err)
	}

	if cfg.DB.Path == "" {
		cfg.DB.Path = "ledger"
	}
	if !filepath.IsAbs(cfg.DB.Path) {
		cfg.DB.Path = filepath.Join(repoPath, cfg.DB.Path)
	}
	if cfg.Market.Denom == "" {
		cfg.Market.Denom = constants.DEFAULT_DENOM
	}
	return &cfg, nil
}

func GetConfig() *MarketNode {
	return config
}

func requiredFieldsAreGiven(metaData toml.MetaData) error {
	requiredFields := [][]string{
		{"API"},
		{"Market"},

		{"API", "Port"},

		{"Market", "Admin"},
		{"Market", "CommunityPool"},
		{"Market", "CommunityFeePercent"},
	}

	var missing []string
	for _, v := range requiredFields {
		if !metaData.IsDefined(v...) {
			missing = append(missing, strings.Join(v, "."))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required fields not given: %s", strings.Join(missing, ", "))
	}
	return nil
}

// WriteDefaultConfig creates a config.toml template under repoPath unless one exists.
func WriteDefaultConfig(repoPath string, cfg MarketNode) (string, error) {
	if err := os.MkdirAll(repoPath, 0700); err != nil {
		return "", err
	}
	configFile := filepath.Join(repoPath, ConfigFile)
	if _, err := os.Stat(configFile); err == nil {
		return configFile, fmt.Errorf("config file %s already exists", configFile)
	}

	f, err := os.OpenFile(configFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err = toml.NewEncoder(f).Encode(cfg); err != nil {
		return "", fmt.Errorf("writing config file %s: %w", configFile, err)
	}
	return configFile, nil
}
