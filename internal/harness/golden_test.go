package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGolden_HomepagePass(t *testing.T) {
	f := newFakes()
	s := mustParse(t, `
name: homepage_pass
base: http://base.test
test: http://test.test
steps:
  - goto: /
    screenshot: home
  - capture: menu
    interact:
      - click: "#menu"
`)

	result, err := Run(context.Background(), s, f.runtime(t))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, s.Name, result))
}

func TestGolden_MissingPage(t *testing.T) {
	f := newFakes()
	f.driver.GotoErr["http://base.test/missing"] = errors.New("net::ERR_NAME_NOT_RESOLVED")
	s := mustParse(t, `
name: missing_page
base: http://base.test
test: http://test.test
steps:
  - goto: /missing
    screenshot: never
`)

	result, err := Run(context.Background(), s, f.runtime(t))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, s.Name, result))
}
