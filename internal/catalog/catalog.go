// Package catalog implements the Environment Catalog (C1): a static,
// startup-loaded table of viewport, browser, and network profiles with
// the keyword-selection rules the Request Parser delegates to.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/testgpt-run/testgpt/internal/domain"
)

// ErrUnknownProfile is returned when a requested profile name is not
// present in the catalog.
type ErrUnknownProfile struct {
	Kind string
	Name string
}

func (e *ErrUnknownProfile) Error() string {
	return fmt.Sprintf("unknown %s profile: %q", e.Kind, e.Name)
}

// Catalog holds the immutable set of profiles loaded at startup.
type Catalog struct {
	viewports map[string]domain.ViewportProfile
	browsers  map[string]domain.BrowserProfile
	networks  map[string]domain.NetworkProfile

	// siteOverrides maps a target-host substring to browser names that
	// must always be included for that host (§4.1 "site-based override").
	siteOverrides map[string][]string
}

// New builds a Catalog from loaded profile slices. Callers typically
// obtain the slices via internal/config's document loader.
func New(viewports []domain.ViewportProfile, browsers []domain.BrowserProfile, networks []domain.NetworkProfile, siteOverrides map[string][]string) *Catalog {
	c := &Catalog{
		viewports:     make(map[string]domain.ViewportProfile, len(viewports)),
		browsers:      make(map[string]domain.BrowserProfile, len(browsers)),
		networks:      make(map[string]domain.NetworkProfile, len(networks)),
		siteOverrides: siteOverrides,
	}
	for _, v := range viewports {
		c.viewports[v.Name] = v
	}
	for _, b := range browsers {
		c.browsers[b.Name] = b
	}
	for _, n := range networks {
		c.networks[n.Name] = n
	}
	if c.siteOverrides == nil {
		c.siteOverrides = map[string][]string{}
	}
	return c
}

// LookupViewport returns the named viewport profile.
func (c *Catalog) LookupViewport(name string) (domain.ViewportProfile, error) {
	v, ok := c.viewports[name]
	if !ok {
		return domain.ViewportProfile{}, &ErrUnknownProfile{Kind: "viewport", Name: name}
	}
	return v, nil
}

// LookupBrowser returns the named browser profile.
func (c *Catalog) LookupBrowser(name string) (domain.BrowserProfile, error) {
	b, ok := c.browsers[name]
	if !ok {
		return domain.BrowserProfile{}, &ErrUnknownProfile{Kind: "browser", Name: name}
	}
	return b, nil
}

// LookupNetwork returns the named network profile.
func (c *Catalog) LookupNetwork(name string) (domain.NetworkProfile, error) {
	n, ok := c.networks[name]
	if !ok {
		return domain.NetworkProfile{}, &ErrUnknownProfile{Kind: "network", Name: name}
	}
	return n, nil
}

// ListAllViewports returns every viewport profile, sorted by name for
// deterministic iteration.
func (c *Catalog) ListAllViewports() []domain.ViewportProfile {
	out := make([]domain.ViewportProfile, 0, len(c.viewports))
	for _, v := range c.viewports {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAllBrowsers returns every browser profile, sorted by name.
func (c *Catalog) ListAllBrowsers() []domain.BrowserProfile {
	out := make([]domain.BrowserProfile, 0, len(c.browsers))
	for _, b := range c.browsers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAllNetworks returns every network profile, sorted by name.
func (c *Catalog) ListAllNetworks() []domain.NetworkProfile {
	out := make([]domain.NetworkProfile, 0, len(c.networks))
	for _, n := range c.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func addUnique(list []string, names ...string) []string {
	for _, name := range names {
		found := false
		for _, existing := range list {
			if existing == name {
				found = true
				break
			}
		}
		if !found {
			list = append(list, name)
		}
	}
	return list
}

// SelectProfilesForKeywords implements §4.1's keyword → profile rules.
// target_url is used only for the site-based override.
func (c *Catalog) SelectProfilesForKeywords(keywords []string, targetURL string) (viewportNames, browserNames, networkNames []string) {
	has := func(kw string) bool {
		for _, k := range keywords {
			if k == kw {
				return true
			}
		}
		return false
	}

	if has("responsive") {
		viewportNames = addUnique(viewportNames, "iphone-13-pro", "ipad-air", "desktop-standard")
	}
	if has("iphone") || has("ios") {
		viewportNames = addUnique(viewportNames, "iphone-13-pro")
	}
	if has("ipad") {
		viewportNames = addUnique(viewportNames, "ipad-air")
	}
	if has("android") {
		viewportNames = addUnique(viewportNames, "android-medium")
	}
	if has("desktop") {
		viewportNames = addUnique(viewportNames, "desktop-standard")
	}
	if has("mobile") {
		viewportNames = addUnique(viewportNames, "iphone-13-pro")
	}

	if has("safari") {
		browserNames = addUnique(browserNames, "webkit-desktop")
	}
	if has("ios") || has("iphone") {
		browserNames = addUnique(browserNames, "webkit-ios")
	}
	if has("chrome") {
		browserNames = addUnique(browserNames, "chromium-desktop")
	}
	if has("firefox") {
		browserNames = addUnique(browserNames, "firefox-desktop")
	}
	if has("cross-browser") {
		browserNames = addUnique(browserNames, "chromium-desktop", "webkit-desktop")
	}

	networkNames = addUnique(networkNames, domain.NormalNetwork)
	if has("slow") || has("3g") {
		networkNames = addUnique(networkNames, "slow-3g")
	}
	if has("flaky") {
		networkNames = addUnique(networkNames, "flaky-edge")
	}

	if targetURL != "" {
		host := strings.ToLower(targetURL)
		for substr, forced := range c.siteOverrides {
			if strings.Contains(host, substr) {
				browserNames = addUnique(browserNames, forced...)
			}
		}
	}

	if len(viewportNames) == 0 {
		viewportNames = addUnique(viewportNames, "desktop-standard")
	}
	if len(browserNames) == 0 {
		browserNames = addUnique(browserNames, "chromium-desktop")
	}

	return viewportNames, browserNames, networkNames
}
