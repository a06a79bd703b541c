// Package sources classifies evidence URLs: social-media detection and
// membership in the ranked tiers of trusted domains.
package sources

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/ppiankov/verity/internal/model"
)

// Classification is the result of classifying one URL
type Classification struct {
	Host          string
	Domain        string // registrable domain (eTLD+1), or host when unknown
	IsSocialMedia bool
}

// Classifier is a pure lookup over the static tier table and social-media deny-list
type Classifier struct {
	tiers       map[model.Geography][]model.SourceTier
	social      map[string]bool
	domesticTLD string
}

// NewClassifier builds a classifier from tier configuration
func NewClassifier(cfg model.TierConfig, domesticTLD string) *Classifier {
	c := &Classifier{
		tiers:       make(map[model.Geography][]model.SourceTier),
		social:      make(map[string]bool),
		domesticTLD: strings.TrimPrefix(strings.ToLower(domesticTLD), "."),
	}

	c.tiers[model.GeographyDomestic] = normalizeTiers(cfg.Domestic)
	c.tiers[model.GeographyInternational] = normalizeTiers(cfg.International)

	for _, d := range cfg.SocialMedia {
		if d = normalizeDomain(d); d != "" {
			c.social[d] = true
		}
	}

	return c
}

func normalizeTiers(in []model.SourceTier) []model.SourceTier {
	out := make([]model.SourceTier, 0, len(in))
	for _, t := range in {
		domains := make([]string, 0, len(t.Domains))
		for _, d := range t.Domains {
			if d = normalizeDomain(d); d != "" {
				domains = append(domains, d)
			}
		}
		t.Domains = domains
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// Tiers returns the ordered tier list for a geography. The slice is a copy.
func (c *Classifier) Tiers(geo model.Geography) []model.SourceTier {
	tiers, ok := c.tiers[geo]
	if !ok {
		tiers = c.tiers[model.GeographyDomestic]
	}
	out := make([]model.SourceTier, len(tiers))
	copy(out, tiers)
	return out
}

// Classify inspects a URL. Malformed URLs yield an empty, non-matching classification.
func (c *Classifier) Classify(rawURL string) Classification {
	host := Host(rawURL)
	if host == "" {
		return Classification{}
	}
	return Classification{
		Host:          host,
		Domain:        RegistrableDomain(host),
		IsSocialMedia: c.matchesSocial(host),
	}
}

// IsSocialMedia reports whether the URL points at a social-media host
func (c *Classifier) IsSocialMedia(rawURL string) bool {
	return c.Classify(rawURL).IsSocialMedia
}

func (c *Classifier) matchesSocial(host string) bool {
	if c.social[host] {
		return true
	}
	for d := range c.social {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// TierOf returns the best-ranked tier whose domain list contains the given
// domain (or a parent of it) for the geography. Unknown domains report ok=false
// and are only eligible for the general pass.
func (c *Classifier) TierOf(domain string, geo model.Geography) (model.SourceTier, bool) {
	host := normalizeDomain(domain)
	if host == "" {
		return model.SourceTier{}, false
	}

	for _, tier := range c.Tiers(geo) {
		for _, d := range tier.Domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return tier, true
			}
		}
	}
	return model.SourceTier{}, false
}

// IsDomesticHost reports whether the host's public suffix belongs to the
// domestic country-code TLD (e.g. co.kr, go.kr, or kr itself)
func (c *Classifier) IsDomesticHost(host string) bool {
	if c.domesticTLD == "" {
		return false
	}
	host = normalizeDomain(host)
	if host == "" {
		return false
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	return suffix == c.domesticTLD || strings.HasSuffix(suffix, "."+c.domesticTLD)
}

// Host extracts the lower-cased host (without port and www.) from a URL
func Host(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return normalizeDomain(parsed.Hostname())
}

// RegistrableDomain returns the eTLD+1 of a host, falling back to the host itself
func RegistrableDomain(host string) string {
	host = normalizeDomain(host)
	if host == "" {
		return ""
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimSuffix(d, ".")
	if idx := strings.Index(d, ":"); idx > 0 {
		d = d[:idx]
	}
	return strings.TrimPrefix(d, "www.")
}
