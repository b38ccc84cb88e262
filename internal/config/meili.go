package config

import (
	meili "github.com/meilisearch/meilisearch-go"
)

// NewMeiliClient returns nil when MEILI_URL is unset; search then falls back
// to the database listing.
func NewMeiliClient(cfg *Config) meili.ServiceManager {
	if cfg.MeiliURL == "" {
		return nil
	}
	return meili.New(cfg.MeiliURL, meili.WithAPIKey(cfg.MeiliMasterKey))
}
