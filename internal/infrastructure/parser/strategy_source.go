package parser

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"WeeklyIntel/internal/config"
	"WeeklyIntel/internal/ports"
	"WeeklyIntel/internal/source"
)

// Connector kinds understood by BuildRegistry.
const (
	KindArxiv      = "arxiv"
	KindHackerNews = "hackernews"
	KindRSS        = "rss"
)

// BuildRegistry wires config-defined sources into a registry. Disabled entries are skipped.
func BuildRegistry(sources []config.SourceConfig, client *http.Client, log *slog.Logger) (*source.Registry, error) {
	reg := source.NewRegistry()

	for _, cfg := range sources {
		if !cfg.IsEnabled() {
			debug(log, "source disabled", "source", cfg.Name)
			continue
		}

		src, err := newSource(cfg, client)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
		}
		reg.Register(src)
		debug(log, "source registered", "source", src.Name(), "kind", cfg.Kind)
	}

	if reg.Len() == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	return reg, nil
}

func newSource(cfg config.SourceConfig, client *http.Client) (ports.Source, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("source name is required")
	}

	switch cfg.Kind {
	case KindArxiv:
		if len(cfg.Categories) == 0 {
			return nil, fmt.Errorf("arxiv source needs at least one category")
		}
		return NewArxivScanner(cfg.Name, client, cfg.Categories), nil
	case KindHackerNews:
		hits := 0
		if v := cfg.Options["hitsPerPage"]; v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid hitsPerPage %q: %w", v, err)
			}
			hits = n
		}
		return NewHackerNews(cfg.Name, cfg.URL, hits, client), nil
	case KindRSS:
		if cfg.URL == "" {
			return nil, fmt.Errorf("rss source needs a url")
		}
		return NewRSSFeed(cfg.Name, cfg.URL, client), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

func debug(log *slog.Logger, msg string, args ...interface{}) {
	if log != nil {
		log.Debug(msg, args...)
	}
}
