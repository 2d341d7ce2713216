// Package toolchaindb persists the set of toolchains the "install-
// toolchains" subcommand has fetched for a project: a small YAML-backed
// database keyed by toolchain target, recording the version installed,
// where it landed on disk, and which binaries it provides.
package toolchaindb

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DBFileName is the database's path relative to the project root.
const DBFileName = ".anubis-toolchains/db.yaml"

// Record describes one installed toolchain.
type Record struct {
	Target     string   `yaml:"target"`
	Version    string   `yaml:"version"`
	InstallDir string   `yaml:"install_dir"`
	Binaries   []string `yaml:"binaries"`
}

// DB is the in-memory form of the toolchain database, keyed by the
// toolchain target's normalized string form.
type DB struct {
	path    string
	Records map[string]Record `yaml:"records"`
}

// Load reads the database at {projectRoot}/.anubis-toolchains/db.yaml,
// returning an empty DB if the file doesn't exist yet.
func Load(projectRoot string) (*DB, error) {
	path := filepath.Join(projectRoot, DBFileName)
	db := &DB{path: path, Records: make(map[string]Record)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return db, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading toolchain database %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, db); err != nil {
		return nil, fmt.Errorf("parsing toolchain database %s: %w", path, err)
	}
	if db.Records == nil {
		db.Records = make(map[string]Record)
	}
	return db, nil
}

// Save writes db back to its backing file, creating parent directories as
// needed.
func (db *DB) Save() error {
	if err := os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
		return fmt.Errorf("creating toolchain database directory: %w", err)
	}
	data, err := yaml.Marshal(db)
	if err != nil {
		return fmt.Errorf("encoding toolchain database: %w", err)
	}
	if err := os.WriteFile(db.path, data, 0o644); err != nil {
		return fmt.Errorf("writing toolchain database %s: %w", db.path, err)
	}
	return nil
}

// Put records or replaces the entry for key (a toolchain target's
// normalized string form).
func (db *DB) Put(key string, rec Record) {
	db.Records[key] = rec
}

// Get looks up an installed toolchain's record.
func (db *DB) Get(key string) (Record, bool) {
	rec, ok := db.Records[key]
	return rec, ok
}
