package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/upb/fetchguard/internal/policy"
)

// PolicyFile is the YAML shape of a policy file:
//
//	enabled: true
//	default:
//	  enforce_same_site: false
//	  asset_path_prefix: /assets/
//	routes:
//	  - pattern: /api/**
//	    enforce_same_site: true
//	  - pattern: /webhooks/**
//	    disabled: true
type PolicyFile struct {
	// Enabled defaults to true when a policy file is present.
	Enabled *bool           `yaml:"enabled"`
	Default policy.Options  `yaml:"default"`
	Routes  []RouteOverride `yaml:"routes"`
}

// RouteOverride clones the default policy and changes only the fields it sets.
type RouteOverride struct {
	Pattern             string   `yaml:"pattern"`
	Disabled            bool     `yaml:"disabled"`
	EnforceSameSite     *bool    `yaml:"enforce_same_site"`
	LogOnBlock          *bool    `yaml:"log_on_block"`
	ReportOnly          *bool    `yaml:"report_only"`
	AssetPathPrefix     *string  `yaml:"asset_path_prefix"`
	AssetPathPatterns   []string `yaml:"asset_path_patterns"`
	NavigationExemption *bool    `yaml:"navigation_exemption"`
	FrameNavigation     *bool    `yaml:"frame_navigation"`
}

// Apply writes the fields set on the override into opts.
func (ro RouteOverride) Apply(opts *policy.Options) {
	if ro.EnforceSameSite != nil {
		opts.EnforceSameSite = *ro.EnforceSameSite
	}
	if ro.LogOnBlock != nil {
		opts.LogOnBlock = *ro.LogOnBlock
	}
	if ro.ReportOnly != nil {
		opts.ReportOnly = *ro.ReportOnly
	}
	if ro.AssetPathPrefix != nil {
		opts.AssetPathPrefix = *ro.AssetPathPrefix
	}
	if ro.AssetPathPatterns != nil {
		opts.AssetPathPatterns = append([]string(nil), ro.AssetPathPatterns...)
	}
	if ro.NavigationExemption != nil {
		opts.NavigationExemption = *ro.NavigationExemption
	}
	if ro.FrameNavigation != nil {
		opts.FrameNavigation = *ro.FrameNavigation
	}
}

// LoadPolicySnapshot builds the policy snapshot described by c: the policy
// file when one is configured, the environment otherwise.
func LoadPolicySnapshot(c PolicyConfig) (*policy.Snapshot, error) {
	if c.File == "" {
		def, err := policy.FromOptions(c.Options())
		if err != nil {
			return nil, fmt.Errorf("policy configuration: %w", err)
		}
		snap, err := policy.NewSnapshot(c.Enabled, def)
		if err != nil {
			return nil, err
		}
		snap.Source = "env"
		return snap, nil
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	snap, err := ParsePolicyFile(data, c.Options())
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", c.File, err)
	}
	snap.Source = c.File
	return snap, nil
}

// ParsePolicyFile decodes a YAML policy file on top of base options.
// Unknown keys are rejected.
func ParsePolicyFile(data []byte, base policy.Options) (*policy.Snapshot, error) {
	pf := PolicyFile{Default: base}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	def, err := policy.FromOptions(pf.Default)
	if err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}

	routes := make([]policy.Route, 0, len(pf.Routes))
	for i, ro := range pf.Routes {
		rt := policy.Route{Pattern: ro.Pattern, Disabled: ro.Disabled}
		if !ro.Disabled {
			opts := def.Options()
			ro.Apply(&opts)
			p, err := policy.FromOptions(opts)
			if err != nil {
				return nil, fmt.Errorf("route %d (%s): %w", i, ro.Pattern, err)
			}
			rt.Policy = p
		}
		routes = append(routes, rt)
	}

	enabled := true
	if pf.Enabled != nil {
		enabled = *pf.Enabled
	}

	snap, err := policy.NewSnapshot(enabled, def, routes...)
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(data)
	snap.Hash = "sha256:" + hex.EncodeToString(h[:])
	return snap, nil
}
