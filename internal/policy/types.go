package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidOptions is returned when policy options fail validation.
var ErrInvalidOptions = errors.New("invalid policy options")

// validate is the package validator, with the "glob" tag registered for
// doublestar asset patterns.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
		return doublestar.ValidatePattern(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register glob validation: %v", err))
	}
	return v
}

// Options is the mutable form of a Policy. It is only ever handed to
// configuration callbacks and decoders; New freezes it into a Policy.
type Options struct {
	// EnforceSameSite blocks Sec-Fetch-Site: same-site requests.
	EnforceSameSite bool `json:"enforce_same_site" yaml:"enforce_same_site"`

	// LogOnBlock emits one warning line per blocked request.
	LogOnBlock bool `json:"log_on_block" yaml:"log_on_block"`

	// ReportOnly logs and audits blocked requests but still forwards them.
	ReportOnly bool `json:"report_only" yaml:"report_only"`

	// AssetPathPrefix exempts paths starting with it. Empty disables the exemption.
	AssetPathPrefix string `json:"asset_path_prefix" yaml:"asset_path_prefix" validate:"omitempty,startswith=/,excludesall=?#"`

	// AssetPathPatterns exempts paths matching any doublestar pattern.
	AssetPathPatterns []string `json:"asset_path_patterns,omitempty" yaml:"asset_path_patterns" validate:"omitempty,dive,required,startswith=/,glob"`

	// NavigationExemption allows top-level GET navigations from other sites.
	NavigationExemption bool `json:"navigation_exemption" yaml:"navigation_exemption"`

	// FrameNavigation extends the navigation exemption to frame and iframe
	// destinations. When false only document navigations qualify.
	FrameNavigation bool `json:"frame_navigation" yaml:"frame_navigation"`
}

// DefaultOptions returns the options every policy starts from.
func DefaultOptions() Options {
	return Options{
		EnforceSameSite:     false,
		LogOnBlock:          true,
		NavigationExemption: true,
		FrameNavigation:     true,
	}
}

// Validate checks the options and returns an error wrapping ErrInvalidOptions.
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "startswith":
			msgs = append(msgs, fmt.Sprintf("%s must start with %q", fe.Field(), fe.Param()))
		case "excludesall":
			msgs = append(msgs, fmt.Sprintf("%s must not contain a query or fragment", fe.Field()))
		case "glob":
			msgs = append(msgs, fmt.Sprintf("%s has an invalid pattern %q", fe.Field(), fe.Value()))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s must not contain empty patterns", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(msgs, "; "))
}

func (o Options) clone() Options {
	o.AssetPathPatterns = slices.Clone(o.AssetPathPatterns)
	return o
}

// Policy is an immutable, validated request-isolation policy. Copies are
// cheap and safe to share between goroutines.
type Policy struct {
	opts Options
}

// New builds a Policy from DefaultOptions after applying the configure
// callbacks in order.
func New(configure ...func(*Options)) (Policy, error) {
	opts := DefaultOptions()
	for _, fn := range configure {
		if fn != nil {
			fn(&opts)
		}
	}
	return FromOptions(opts)
}

// MustNew is like New but panics on invalid options. Intended for static setup.
func MustNew(configure ...func(*Options)) Policy {
	p, err := New(configure...)
	if err != nil {
		panic(err)
	}
	return p
}

// FromOptions validates opts and freezes a copy of them.
func FromOptions(opts Options) (Policy, error) {
	if err := opts.Validate(); err != nil {
		return Policy{}, err
	}
	return Policy{opts: opts.clone()}, nil
}

// Default returns the policy built from DefaultOptions.
func Default() Policy {
	return Policy{opts: DefaultOptions()}
}

// With returns a new Policy derived from p with configure applied to a copy
// of its options. p itself is never modified.
func (p Policy) With(configure ...func(*Options)) (Policy, error) {
	opts := p.Options()
	for _, fn := range configure {
		if fn != nil {
			fn(&opts)
		}
	}
	return FromOptions(opts)
}

// Options returns a copy of the policy options.
func (p Policy) Options() Options {
	return p.opts.clone()
}

// EnforceSameSite reports whether same-site requests are blocked.
func (p Policy) EnforceSameSite() bool { return p.opts.EnforceSameSite }

// LogOnBlock reports whether blocked requests are logged.
func (p Policy) LogOnBlock() bool { return p.opts.LogOnBlock }

// ReportOnly reports whether blocked requests are forwarded anyway.
func (p Policy) ReportOnly() bool { return p.opts.ReportOnly }

// AssetPathPrefix returns the asset exemption prefix, empty when disabled.
func (p Policy) AssetPathPrefix() string { return p.opts.AssetPathPrefix }

// AssetPathPatterns returns a copy of the asset exemption patterns.
func (p Policy) AssetPathPatterns() []string { return slices.Clone(p.opts.AssetPathPatterns) }

// NavigationExemption reports whether cross-site top-level navigations are allowed.
func (p Policy) NavigationExemption() bool { return p.opts.NavigationExemption }

// FrameNavigation reports whether frame and iframe navigations count as top-level.
func (p Policy) FrameNavigation() bool { return p.opts.FrameNavigation }
