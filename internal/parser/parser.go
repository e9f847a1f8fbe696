// Package parser implements the Request Parser (C2): a deterministic,
// pure transform from a raw natural-language testing request into a
// domain.ParsedRequest.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/testgpt-run/testgpt/internal/catalog"
	"github.com/testgpt-run/testgpt/internal/domain"
)

// ErrMalformedRequest is returned when no target URL can be extracted
// and the request is not a re-run reference.
type ErrMalformedRequest struct {
	Message string
}

func (e *ErrMalformedRequest) Error() string {
	return fmt.Sprintf("could not parse a target URL from: %q", e.Message)
}

// schemeHost matches <scheme>://<host> forms, including chat-surface-
// wrapped forms like <http://host|host>; bareHost matches subdomain-
// inclusive hostnames with a closed TLD list. Matching is intentionally strict:
// there is no substring fallback, so subdomains are never stripped.
var (
	schemeHost = regexp.MustCompile(`<?(https?://[a-zA-Z0-9.-]+(?::[0-9]+)?(?:/[^\s|>]*)?)(?:\|[^>]*)?>?`)
	bareHost   = regexp.MustCompile(`\b((?:[a-zA-Z0-9-]+\.)+(?:com|org|net|io|club|dev|app|co|ai|gg|xyz))\b`)
	schemeOnly = regexp.MustCompile(`^https?://([^/\s:]+)`)
)

// ExtractURL finds the target URL within a raw message, per §4.2's
// rules. Returns ("", false) if no URL is found — callers must not
// invent a default.
func ExtractURL(message string) (string, bool) {
	if m := schemeHost.FindStringSubmatch(message); m != nil {
		return m[1], true
	}
	if m := bareHost.FindStringSubmatch(message); m != nil {
		return m[1], true
	}
	return "", false
}

// Host extracts just the hostname from a target URL string (strips
// scheme, path, port) for subdomain-preservation checks and
// site-override matching.
func Host(targetURL string) string {
	if m := schemeOnly.FindStringSubmatch(targetURL); m != nil {
		return m[1]
	}
	// Bare host form: strip any trailing path.
	if idx := strings.IndexAny(targetURL, "/ \t"); idx >= 0 {
		return targetURL[:idx]
	}
	return targetURL
}

var rerunPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)re-?run\s+(.+)$`),
	regexp.MustCompile(`(?i)run\s+(.+?)\s+again$`),
	regexp.MustCompile(`(?i)repeat\s+(.+)$`),
	regexp.MustCompile(`(?i)execute\s+(.+)$`),
}

// SpecialRerunRefs is the closed set of re-run references that resolve
// against the scenario store's most recent run rather than a
// scenario-name/ID lookup (§4.2: "last, last test, latest, most recent
// are preserved verbatim and resolved later against the scenario
// store").
var SpecialRerunRefs = map[string]bool{
	"last": true, "last test": true, "latest": true, "most recent": true,
}

// IsSpecialRerunRef reports whether ref (case-insensitively) names the
// "most recent run" rather than a specific scenario.
func IsSpecialRerunRef(ref string) bool {
	return SpecialRerunRefs[strings.ToLower(strings.TrimSpace(ref))]
}

// DetectRerun looks for re-run phrasing and returns the raw reference
// string verbatim (special references like "last" are preserved for
// later resolution against the scenario store, not normalized here).
func DetectRerun(message string) (reference string, isRerun bool) {
	trimmed := strings.TrimSpace(message)
	for _, pat := range rerunPatterns {
		if m := pat.FindStringSubmatch(trimmed); m != nil {
			ref := strings.TrimSpace(m[1])
			ref = strings.Trim(ref, ".!? ")
			return ref, true
		}
	}
	return "", false
}

// flowKeywords maps keyword classes to flow template names, tested in
// this order so the first match wins (§4.2).
var flowKeywords = []struct {
	pattern *regexp.Regexp
	flow    string
}{
	{regexp.MustCompile(`(?i)register|signup|sign up|recruit`), "signup"},
	{regexp.MustCompile(`(?i)pricing|plans`), "pricing"},
}

// DetectFlows returns the flow template names implied by the message,
// defaulting to "landing" when no keyword class matches.
func DetectFlows(message string) []string {
	for _, fk := range flowKeywords {
		if fk.pattern.MatchString(message) {
			return []string{fk.flow}
		}
	}
	return []string{"landing"}
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9().\-\s]{7,}[0-9]`)
)

// ExtractLiterals pulls phone/email literals out of the message so
// they can be injected as step values by the Plan Builder (§4.2).
func ExtractLiterals(message string) (email, phone string) {
	if m := emailPattern.FindString(message); m != "" {
		email = m
	}
	if m := phonePattern.FindString(message); m != "" {
		phone = strings.TrimSpace(m)
	}
	return email, phone
}

// matrixKeywordList holds the keyword classes whose presence implies the
// caller wants a multi-cell matrix (§4.2's "expand to >= 3 cells" rule
// is enforced by the catalog's selection rules, not here — this list
// only decides which raw words get forwarded to the catalog).
var matrixKeywordList = []string{
	"responsive", "cross-browser", "safari", "chrome", "firefox",
	"mobile", "desktop", "iphone", "ipad", "android", "ios",
	"slow", "3g", "flaky",
}

func extractKeywords(message string) []string {
	lower := strings.ToLower(message)
	var found []string
	for _, kw := range matrixKeywordList {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// Parser transforms raw messages into domain.ParsedRequest values,
// delegating environment selection to the Catalog (C1).
type Parser struct {
	catalog *catalog.Catalog
}

// New builds a Parser bound to a loaded Catalog.
func New(cat *catalog.Catalog) *Parser {
	return &Parser{catalog: cat}
}

// Parse is the deterministic, pure parse entry point.
func (p *Parser) Parse(message string) (domain.ParsedRequest, error) {
	ref, isRerun := DetectRerun(message)
	if isRerun {
		return domain.ParsedRequest{
			RawMessage:            message,
			IsRerun:                true,
			RerunReference:        ref,
			CustomUserInstruction: message,
		}, nil
	}

	url, ok := ExtractURL(message)
	if !ok {
		return domain.ParsedRequest{}, &ErrMalformedRequest{Message: message}
	}

	keywords := extractKeywords(message)
	viewports, browsers, networks := p.catalog.SelectProfilesForKeywords(keywords, url)
	flows := DetectFlows(message)

	return domain.ParsedRequest{
		RawMessage:            message,
		TargetURL:             url,
		FlowNames:             flows,
		ViewportNames:         viewports,
		BrowserNames:          browsers,
		NetworkNames:          networks,
		IsRerun:               false,
		CustomUserInstruction: message,
	}, nil
}
