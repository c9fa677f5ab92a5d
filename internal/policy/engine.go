package policy

import (
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Decision is the outcome of evaluating a request against a policy.
type Decision int

const (
	// Allow forwards the request to the downstream handler.
	Allow Decision = iota + 1
	// Block answers the request with a 403.
	Block
)

// String returns the lower-case decision name.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// Rule names the evaluation step that produced a decision.
type Rule string

const (
	RuleNoFetchMetadata Rule = "no-fetch-metadata"
	RuleTrustedSite     Rule = "trusted-site"
	RuleNavigation      Rule = "navigation"
	RuleAsset           Rule = "asset"
	RuleDefaultDeny     Rule = "default-deny"
)

// Evaluate decides whether req is allowed under p.
func Evaluate(req Request, p Policy) Decision {
	d, _ := Explain(req, p)
	return d
}

// Explain evaluates req under p and also returns the rule that decided.
//
// Evaluation order (first match wins):
//  1. No Sec-Fetch-Site header: allow, the client predates Fetch Metadata
//  2. same-origin or none, and same-site unless EnforceSameSite: allow
//  3. GET top-level navigation to a document (or frame/iframe): allow
//  4. Asset path prefix or pattern: allow
//  5. Block
func Explain(req Request, p Policy) (Decision, Rule) {
	site, ok := req.headerValue(HeaderSecFetchSite)
	if !ok {
		return Allow, RuleNoFetchMetadata
	}

	if p.trustsSite(site) {
		return Allow, RuleTrustedSite
	}

	if p.NavigationExemption() && p.isTopLevelNavigation(req) {
		return Allow, RuleNavigation
	}

	if p.isAsset(req.Path) {
		return Allow, RuleAsset
	}

	return Block, RuleDefaultDeny
}

func (p Policy) trustsSite(site string) bool {
	switch site {
	case SiteSameOrigin, SiteNone:
		return true
	case SiteSameSite:
		return !p.EnforceSameSite()
	default:
		return false
	}
}

func (p Policy) isTopLevelNavigation(req Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if mode, _ := req.headerValue(HeaderSecFetchMode); mode != ModeNavigate {
		return false
	}

	dest, _ := req.headerValue(HeaderSecFetchDest)
	switch dest {
	case DestDocument:
		return true
	case DestFrame, DestIFrame:
		return p.FrameNavigation()
	default:
		return false
	}
}

func (p Policy) isAsset(requestPath string) bool {
	if p.opts.AssetPathPrefix == "" && len(p.opts.AssetPathPatterns) == 0 {
		return false
	}

	cleaned := cleanPath(requestPath)
	if p.opts.AssetPathPrefix != "" && strings.HasPrefix(cleaned, p.opts.AssetPathPrefix) {
		return true
	}
	for _, pattern := range p.opts.AssetPathPatterns {
		// Patterns are validated when the policy is built.
		if ok, _ := doublestar.Match(pattern, cleaned); ok {
			return true
		}
	}
	return false
}
