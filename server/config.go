package server

import (
	"os"
	"path/filepath"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/storage"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds everything needed to run the SSH host.
type Config struct {
	SSHAddr string `yaml:"ssh_addr"`
	// Dir holds the host key, the control socket, the ledger and the logs.
	Dir            string `yaml:"dir"`
	DataRoot       string `yaml:"data_root"`
	SuperDir       string `yaml:"super_dir"`
	AllowChaotic   bool   `yaml:"allow_chaotic_commands"`
	NegativeScores bool   `yaml:"negative_scores"`
	LogFile        string `yaml:"log_file"`
	AuditFile      string `yaml:"audit_file"`
	AuditMaxSizeMB int    `yaml:"audit_max_size_mb"`
	LedgerPath     string `yaml:"ledger_path"`
	ControlSocket  string `yaml:"control_socket"`
}

func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	root, _ := storage.DefaultRoot()
	return Config{
		SSHAddr:        "127.0.0.1:15000",
		Dir:            filepath.Join(home, ".bsoecon"),
		DataRoot:       root,
		SuperDir:       "default",
		AuditMaxSizeMB: 100,
	}
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file keep their values.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return econ.WithStack(err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return errors.Wrapf(err, "parsing %q", path)
	}
	return nil
}

func (c Config) inDir(path string, name string) string {
	if path != "" {
		return path
	}
	return filepath.Join(c.Dir, name)
}

// LedgerFile is the SQLite points ledger.
func (c Config) LedgerFile() string {
	return c.inDir(c.LedgerPath, "ledger.sqlite")
}

func (c Config) AuditLogFile() string {
	return c.inDir(c.AuditFile, "audit.log")
}

// SocketPath is where the control socket listens.
func (c Config) SocketPath() string {
	return c.inDir(c.ControlSocket, "control.sock")
}

func (c Config) Resolver() storage.Resolver {
	return storage.Resolver{Root: c.DataRoot, SuperDir: c.SuperDir}
}
