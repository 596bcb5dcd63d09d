package tenant

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dynquery/internal/catalog"
	"dynquery/internal/db/crypto"
	"dynquery/internal/domain"
)

// Config holds the connection parameters of one tenant.
type Config struct {
	Name     string `yaml:"name"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
}

// Directory resolves tenant names to connection parameters. With no
// explicit tenants every identifier-shaped name is accepted and maps to the
// database of the same name on the default server.
type Directory struct {
	defaults Config
	tenants  map[string]Config
}

// NewDirectory creates a directory from defaults and explicit tenants.
func NewDirectory(defaults Config, tenants []Config) *Directory {
	d := &Directory{defaults: defaults, tenants: make(map[string]Config, len(tenants))}
	for _, t := range tenants {
		d.tenants[t.Name] = t
	}
	return d
}

// Resolve returns the merged configuration of the named tenant.
func (d *Directory) Resolve(name string) (Config, error) {
	if !catalog.IsIdentifier(name) {
		return Config{}, domain.ErrValidation("invalid tenant name %q", name)
	}
	cfg := d.defaults
	cfg.Name = name
	cfg.Database = name
	cfg.Path = ""
	if len(d.tenants) > 0 {
		t, ok := d.tenants[name]
		if !ok {
			return Config{}, domain.ErrNotFound("unknown tenant %q", name)
		}
		if t.Database != "" {
			cfg.Database = t.Database
		}
		if t.Host != "" {
			cfg.Host = t.Host
		}
		if t.Port != 0 {
			cfg.Port = t.Port
		}
		if t.User != "" {
			cfg.User = t.User
		}
		if t.Password != "" {
			cfg.Password = t.Password
		}
		cfg.Path = t.Path
	}
	return cfg, nil
}

// Names returns the explicitly configured tenants.
func (d *Directory) Names() []string {
	out := make([]string, 0, len(d.tenants))
	for name := range d.tenants {
		out = append(out, name)
	}
	return out
}

// LoadTenants reads a tenants file:
//
//	tenants:
//	  - name: acme
//	    database: acme_prod
//	    password: enc:6f1c...
//
// Passwords sealed with crypto.Encryptor are opened with enc, which may be
// nil when no sealed values are present.
func LoadTenants(path string, enc *crypto.Encryptor) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}
	var doc struct {
		Tenants []Config `yaml:"tenants"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tenants file: %w", err)
	}
	seen := make(map[string]bool, len(doc.Tenants))
	for i := range doc.Tenants {
		t := &doc.Tenants[i]
		if !catalog.IsIdentifier(t.Name) {
			return nil, fmt.Errorf("tenants[%d]: invalid name %q", i, t.Name)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("tenants[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
		if crypto.IsSealed(t.Password) {
			if enc == nil {
				return nil, fmt.Errorf("tenant %s: sealed password but no encryption key configured", t.Name)
			}
			plain, err := enc.Open(t.Password)
			if err != nil {
				return nil, fmt.Errorf("tenant %s: %w", t.Name, err)
			}
			t.Password = plain
		}
	}
	return doc.Tenants, nil
}
