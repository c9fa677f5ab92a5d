package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := New()
		require.NoError(t, err)

		assert.False(t, p.EnforceSameSite())
		assert.True(t, p.LogOnBlock())
		assert.False(t, p.ReportOnly())
		assert.Empty(t, p.AssetPathPrefix())
		assert.True(t, p.NavigationExemption())
		assert.True(t, p.FrameNavigation())
		assert.Equal(t, Default(), p)
	})

	t.Run("configure callbacks apply in order", func(t *testing.T) {
		p, err := New(
			func(o *Options) { o.AssetPathPrefix = "/assets" },
			nil,
			func(o *Options) {
				o.EnforceSameSite = true
				o.LogOnBlock = false
			},
		)
		require.NoError(t, err)

		assert.True(t, p.EnforceSameSite())
		assert.False(t, p.LogOnBlock())
		assert.Equal(t, "/assets", p.AssetPathPrefix())
	})

	t.Run("invalid options", func(t *testing.T) {
		tests := []struct {
			name string
			fn   func(*Options)
			msg  string
		}{
			{"relative prefix", func(o *Options) { o.AssetPathPrefix = "assets/" }, "AssetPathPrefix must start with"},
			{"prefix with query", func(o *Options) { o.AssetPathPrefix = "/assets?x=1" }, "query or fragment"},
			{"bad pattern", func(o *Options) { o.AssetPathPatterns = []string{"/static/[a-"} }, "invalid pattern"},
			{"empty pattern", func(o *Options) { o.AssetPathPatterns = []string{""} }, "empty patterns"},
			{"relative pattern", func(o *Options) { o.AssetPathPatterns = []string{"**/*.js"} }, "must start with"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := New(tt.fn)
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidOptions)
				assert.Contains(t, err.Error(), tt.msg)
			})
		}
	})

	t.Run("must new panics on invalid options", func(t *testing.T) {
		assert.Panics(t, func() {
			MustNew(func(o *Options) { o.AssetPathPrefix = "nope" })
		})
	})
}

func TestPolicyWith(t *testing.T) {
	base := MustNew(func(o *Options) {
		o.AssetPathPatterns = []string{"/static/**"}
	})

	derived, err := base.With(func(o *Options) {
		o.EnforceSameSite = true
		o.AssetPathPatterns = append(o.AssetPathPatterns, "/img/**")
	})
	require.NoError(t, err)

	assert.True(t, derived.EnforceSameSite())
	assert.Equal(t, []string{"/static/**", "/img/**"}, derived.AssetPathPatterns())

	assert.False(t, base.EnforceSameSite())
	assert.Equal(t, []string{"/static/**"}, base.AssetPathPatterns())

	_, err = base.With(func(o *Options) { o.AssetPathPrefix = "bad" })
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestPolicyOptionsIsACopy(t *testing.T) {
	p := MustNew(func(o *Options) {
		o.AssetPathPatterns = []string{"/static/**"}
	})

	opts := p.Options()
	opts.AssetPathPatterns[0] = "/mutated/**"
	opts.EnforceSameSite = true

	assert.Equal(t, []string{"/static/**"}, p.AssetPathPatterns())
	assert.False(t, p.EnforceSameSite())

	patterns := p.AssetPathPatterns()
	patterns[0] = "/other/**"
	assert.Equal(t, []string{"/static/**"}, p.AssetPathPatterns())
}
