package cfg

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/creativeprojects/refugeemail/lib"
	"gopkg.in/yaml.v3"
)

type AccountType string

const (
	IMAP    AccountType = "imap"
	MAILDIR AccountType = "maildir"
	LOCAL   AccountType = "local"
	MEMORY  AccountType = "memory"
)

type ArchiveType string

const (
	ArchiveMbox    ArchiveType = "mbox"
	ArchiveMaildir ArchiveType = "maildir"
	ArchiveLocal   ArchiveType = "local"
)

const (
	DefaultStateDir   = ".refugeemail"
	DefaultArchiveDir = "archive"
)

type Config struct {
	Accounts map[string]Account `yaml:"accounts"`
	Migrate  Migrate            `yaml:"migrate"`
}

type Account struct {
	Type                AccountType `yaml:"type"`
	ServerURL           string      `yaml:"serverURL"`
	Username            string      `yaml:"username"`
	Password            string      `yaml:"password"`
	Root                string      `yaml:"root"`
	File                string      `yaml:"file"`
	SkipTLSVerification bool        `yaml:"skipTLSVerification"`
	NoTLS               bool        `yaml:"noTLS"`
	StartTLS            bool        `yaml:"startTLS"`
}

// Migrate contains the default values of the migrate and backup commands
type Migrate struct {
	BatchSize   int         `yaml:"batchSize"`
	StateDir    string      `yaml:"stateDir"`
	ArchiveDir  string      `yaml:"archiveDir"`
	ArchiveType ArchiveType `yaml:"archiveType"`
}

func newConfig() *Config {
	return &Config{
		Accounts: make(map[string]Account),
		Migrate: Migrate{
			StateDir:    DefaultStateDir,
			ArchiveDir:  DefaultArchiveDir,
			ArchiveType: ArchiveMbox,
		},
	}
}

// LoadFromFile loads the configuration from the file.
// When mustExist is false, a missing file returns a default configuration.
func LoadFromFile(fileName string, mustExist bool) (*Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		if !mustExist && errors.Is(err, fs.ErrNotExist) {
			return newConfig(), nil
		}
		return nil, err
	}
	return loadConfig(file)
}

// loadConfig from a io.ReadCloser
func loadConfig(reader io.ReadCloser) (*Config, error) {
	defer reader.Close()
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	config := newConfig()
	err := decoder.Decode(config)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	err = validateConfiguration(config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfiguration(config *Config) error {
	if config.Accounts == nil {
		config.Accounts = make(map[string]Account)
	}
	for name, account := range config.Accounts {
		switch account.Type {
		case IMAP:
			if account.ServerURL == "" {
				return fmt.Errorf("%w: account %q needs a serverURL", lib.ErrMissingParameter, name)
			}
		case MAILDIR:
			if account.Root == "" {
				return fmt.Errorf("%w: account %q needs a root directory", lib.ErrMissingParameter, name)
			}
		case LOCAL:
			if account.File == "" {
				return fmt.Errorf("%w: account %q needs a file", lib.ErrMissingParameter, name)
			}
		case MEMORY:
		default:
			return fmt.Errorf("account %q: unexpected account type %q", name, account.Type)
		}
	}
	if config.Migrate.BatchSize < 0 {
		return fmt.Errorf("%w: %d", lib.ErrInvalidBatchSize, config.Migrate.BatchSize)
	}
	switch config.Migrate.ArchiveType {
	case ArchiveMbox, ArchiveMaildir, ArchiveLocal:
	case "":
		config.Migrate.ArchiveType = ArchiveMbox
	default:
		return fmt.Errorf("unexpected archive type %q", config.Migrate.ArchiveType)
	}
	if config.Migrate.StateDir == "" {
		config.Migrate.StateDir = DefaultStateDir
	}
	if config.Migrate.ArchiveDir == "" {
		config.Migrate.ArchiveDir = DefaultArchiveDir
	}
	return nil
}
