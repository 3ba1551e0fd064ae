// Package config loads and saves the replay tool's singleton
// configuration record: OSM/Overpass endpoints, AOI paths, and OAuth
// credentials.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ReplayConfig is the replay tool's configuration record: paths, URLs,
// and credentials.
type ReplayConfig struct {
	OSMBaseURL    string `yaml:"osm_base_url"`
	OverpassURL   string `yaml:"overpass_api_url"`
	AOIRoot       string `yaml:"aoi_root"`
	AOIName       string `yaml:"aoi_name"`
	OriginalAOIFile string `yaml:"original_aoi_file_name"`

	OAuthConsumerKey    string `yaml:"oauth_consumer_key"`
	OAuthConsumerSecret string `yaml:"oauth_consumer_secret"`
	OAuthAPIURL         string `yaml:"oauth_api_url"`
	RequestTokenURL     string `yaml:"request_token_url"`
	AccessTokenURL      string `yaml:"access_token_url"`
	AuthorizationURL    string `yaml:"authorization_url"`

	RequestFIFO string `yaml:"request_fifo"`
	ResultFIFO  string `yaml:"result_fifo"`
}

// Default returns a ReplayConfig suitable for a stock POSM deployment.
func Default() ReplayConfig {
	return ReplayConfig{
		OSMBaseURL:       "http://172.16.1.1:81",
		OverpassURL:      "http://overpass-api.de/api/interpreter",
		AOIRoot:          "/aoi",
		OriginalAOIFile:  "original_aoi.osm",
		OAuthAPIURL:      "https://master.apis.dev.openstreetmap.org",
		RequestTokenURL:  "https://master.apis.dev.openstreetmap.org/oauth/request_token",
		AccessTokenURL:   "https://master.apis.dev.openstreetmap.org/oauth/access_token",
		AuthorizationURL: "https://master.apis.dev.openstreetmap.org/oauth/authorize",
	}
}

// Load reads a ReplayConfig from a YAML file at path, filling in
// Default() for any field the file does not set.
func Load(path string) (ReplayConfig, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return ReplayConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return ReplayConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg ReplayConfig) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Manifest is the per-AOI manifest.json record read from the AOI root:
// bbox as [w, s, e, n] plus a human description.
type Manifest struct {
	BBox        [4]float64 `json:"bbox"`
	Description string     `json:"description"`
}

// LoadManifest reads manifest.json from aoiRoot/aoiName/manifest.json.
func LoadManifest(aoiRoot, aoiName string) (Manifest, error) {
	path := filepath.Join(aoiRoot, aoiName, "manifest.json")
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("config: read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("config: parse manifest %s: %w", path, err)
	}
	return m, nil
}

// OriginalAOIPath returns the path to the original-AOI OSM XML file
// inside aoiRoot/aoiName.
func (c ReplayConfig) OriginalAOIPath() string {
	return filepath.Join(c.AOIRoot, c.AOIName, c.OriginalAOIFile)
}
