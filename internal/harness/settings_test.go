package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/twinshot/internal/engine"
)

func ptr[T any](v T) *T { return &v }

func TestSettings_Layering(t *testing.T) {
	s := &Scenario{
		Name: "x",
		Base: "https://prod.example.com/",
		Test: "http://localhost:3000",
		Options: &OptionsOverride{
			Width:     ptr(1280),
			Threshold: ptr(0.5),
		},
	}

	t.Run("defaults then scenario", func(t *testing.T) {
		st, err := s.Settings(Overrides{})
		require.NoError(t, err)
		assert.Equal(t, "https://prod.example.com", st.BaseHost, "trailing slash trimmed")
		assert.Equal(t, "http://localhost:3000", st.TestHost)
		assert.Equal(t, engine.Options{Show: false, Width: 1280, Height: 1000, Threshold: 0.5}, st.Options)
	})

	t.Run("overrides win", func(t *testing.T) {
		st, err := s.Settings(Overrides{
			TestHost: "http://staging",
			Options:  OptionsOverride{Threshold: ptr(0.0), Show: ptr(true)},
		})
		require.NoError(t, err)
		assert.Equal(t, "https://prod.example.com", st.BaseHost)
		assert.Equal(t, "http://staging", st.TestHost)
		assert.Equal(t, engine.Options{Show: true, Width: 1280, Height: 1000, Threshold: 0}, st.Options)
	})
}

func TestSettings_MissingHosts(t *testing.T) {
	s := &Scenario{Name: "x"}

	_, err := s.Settings(Overrides{TestHost: "http://t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base host")

	_, err = s.Settings(Overrides{BaseHost: "http://b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test host")

	_, err = s.Settings(Overrides{BaseHost: "http://b", TestHost: "http://t"})
	assert.NoError(t, err)
}

func TestSettings_InvalidOverride(t *testing.T) {
	s := &Scenario{Name: "x", Base: "http://b", Test: "http://t"}

	_, err := s.Settings(Overrides{Options: OptionsOverride{Height: ptr(0)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "height")
}

func TestOptionsOverride_NilApply(t *testing.T) {
	var o *OptionsOverride
	assert.Equal(t, engine.DefaultOptions(), o.Apply(engine.DefaultOptions()))
}
