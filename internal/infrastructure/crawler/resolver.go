package crawler

import (
	"log/slog"
	"regexp"
	"strings"

	"NewsCrawler/internal/config"
	"NewsCrawler/internal/scanner"
)

var dottedHostExpr = regexp.MustCompile(`^[\w-]+(\.[\w-]+)+$`)

// Resolver maps operator-facing media names onto configured sites. Unknown
// names that look like hostnames are taken verbatim; anything else is
// dropped with a log line. An empty or fully unresolvable list falls back
// to the whole configured site pool.
type Resolver struct {
	aliases map[string]string
	sites   []scanner.Site
	logger  *slog.Logger
}

// NewResolver converts site configuration into scanner sites and keeps the
// alias table for name resolution.
func NewResolver(sites []config.SiteConfig, aliases map[string]string, logger *slog.Logger) *Resolver {
	converted := make([]scanner.Site, 0, len(sites))
	for _, site := range sites {
		converted = append(converted, scanner.Site{
			Name:            site.Name,
			Domain:          strings.ToLower(site.Domain),
			ChannelPages:    site.ChannelPages,
			ArticlePatterns: site.ArticlePatterns,
		})
	}
	return &Resolver{aliases: aliases, sites: converted, logger: logger}
}

// Resolve returns the sites to crawl for the given media names.
func (r *Resolver) Resolve(mediaNames []string) []scanner.Site {
	if len(mediaNames) == 0 {
		return r.sites
	}

	var out []scanner.Site
	seen := map[string]struct{}{}

	add := func(site scanner.Site) {
		if _, ok := seen[site.Domain]; ok {
			return
		}
		seen[site.Domain] = struct{}{}
		out = append(out, site)
	}

	for _, name := range mediaNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		domain := r.aliases[name]
		if domain == "" && dottedHostExpr.MatchString(name) {
			domain = strings.ToLower(name)
		}
		if domain == "" {
			if r.logger != nil {
				r.logger.Debug("unresolved media name", "name", name)
			}
			continue
		}

		target := RegDomain(domain)
		matched := false
		for _, site := range r.sites {
			if RegDomain(site.Domain) == target {
				add(site)
				matched = true
			}
		}
		if !matched {
			// Ad-hoc site: no channel pages configured, so the standard
			// channel yields nothing for it, but the name stays auditable.
			add(scanner.Site{Name: target, Domain: target})
		}
	}

	if len(out) == 0 {
		return r.sites
	}
	return out
}

// RegDomain reduces a host to its registrable domain, treating com.cn-style
// second-level suffixes as part of the public suffix.
func RegDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	parts := strings.Split(host, ".")
	if len(parts) >= 3 && parts[len(parts)-1] == "cn" {
		switch parts[len(parts)-2] {
		case "com", "net", "org", "gov", "edu":
			return strings.Join(parts[len(parts)-3:], ".")
		}
	}
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}
