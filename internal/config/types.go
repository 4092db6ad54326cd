package config

import "path/filepath"

// Config represents the full site manifest.
type Config struct {
	Version  string   `yaml:"version" validate:"required,semver"`
	Site     Site     `yaml:"site"`
	Database Database `yaml:"database"`
	PHP      PHP      `yaml:"php,omitempty"`
	TLS      TLS      `yaml:"tls,omitempty"`
	Content  Content  `yaml:"content,omitempty"`
	Paths    Paths    `yaml:"paths,omitempty"`
	Settings Settings `yaml:"settings,omitempty"`
}

// Site identifies the site being provisioned.
type Site struct {
	Domain string `yaml:"domain" validate:"required,fqdn"`
	Email  string `yaml:"email,omitempty" validate:"omitempty,email"`
}

// Database holds the WordPress database credentials to create.
type Database struct {
	Name     string `yaml:"name,omitempty" validate:"omitempty,db_ident"`
	User     string `yaml:"user,omitempty" validate:"omitempty,db_ident"`
	Password string `yaml:"password" validate:"required,min=8"`
}

// PHP tunes the php.ini values the original stack cares about. Version is
// detected from the host when empty.
type PHP struct {
	Version           string `yaml:"version,omitempty" validate:"omitempty,php_version"`
	MemoryLimit       string `yaml:"memory_limit,omitempty"`
	UploadMaxFilesize string `yaml:"upload_max_filesize,omitempty"`
	PostMaxSize       string `yaml:"post_max_size,omitempty"`
	MaxExecutionTime  int    `yaml:"max_execution_time,omitempty" validate:"omitempty,min=1"`
}

// TLS controls certificate issuance.
type TLS struct {
	Certbot bool `yaml:"certbot,omitempty"`
}

// Content lists extra themes and plugins deployed from git after the
// WordPress core files are in place.
type Content struct {
	Themes  []GitSource `yaml:"themes,omitempty" validate:"omitempty,dive"`
	Plugins []GitSource `yaml:"plugins,omitempty" validate:"omitempty,dive"`
}

// GitSource is a repository cloned into wp-content.
type GitSource struct {
	Name   string `yaml:"name" validate:"required,min=1,max=100"`
	URL    string `yaml:"url" validate:"required,url"`
	Branch string `yaml:"branch,omitempty"`
	Depth  int    `yaml:"depth,omitempty" validate:"omitempty,min=0"`
}

// Paths overrides the filesystem layout. Everything is defaulted from the
// domain when left empty.
type Paths struct {
	WebRoot        string `yaml:"web_root,omitempty"`
	NginxAvailable string `yaml:"nginx_available,omitempty"`
	NginxEnabled   string `yaml:"nginx_enabled,omitempty"`
}

// Settings holds run policy.
type Settings struct {
	Overwrite bool `yaml:"overwrite,omitempty"`
	Verbose   bool `yaml:"verbose,omitempty"`
}

// ApplyDefaults fills in everything derivable from the domain, matching
// the layout the original installer used.
func (c *Config) ApplyDefaults() {
	if c.Site.Email == "" && c.Site.Domain != "" {
		c.Site.Email = "admin@" + c.Site.Domain
	}
	if c.Database.Name == "" {
		c.Database.Name = "wordpress"
	}
	if c.Database.User == "" {
		c.Database.User = "wpuser"
	}
	if c.PHP.MemoryLimit == "" {
		c.PHP.MemoryLimit = "256M"
	}
	if c.PHP.UploadMaxFilesize == "" {
		c.PHP.UploadMaxFilesize = "64M"
	}
	if c.PHP.PostMaxSize == "" {
		c.PHP.PostMaxSize = "64M"
	}
	if c.PHP.MaxExecutionTime == 0 {
		c.PHP.MaxExecutionTime = 300
	}
	if c.Paths.WebRoot == "" && c.Site.Domain != "" {
		c.Paths.WebRoot = filepath.Join("/var/www", c.Site.Domain)
	}
	if c.Paths.NginxAvailable == "" {
		c.Paths.NginxAvailable = "/etc/nginx/sites-available"
	}
	if c.Paths.NginxEnabled == "" {
		c.Paths.NginxEnabled = "/etc/nginx/sites-enabled"
	}
}

// NginxSitePath is the sites-available config file for this site.
func (c *Config) NginxSitePath() string {
	return filepath.Join(c.Paths.NginxAvailable, c.Site.Domain)
}

// NginxLinkPath is the sites-enabled symlink for this site.
func (c *Config) NginxLinkPath() string {
	return filepath.Join(c.Paths.NginxEnabled, c.Site.Domain)
}
