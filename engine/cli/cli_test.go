package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/beamline/pkg/logger"
)

func Test_Base(t *testing.T) {
	t.Parallel()

	var ran bool
	root := &cobra.Command{Use: "beamline"}
	base := NewBase(logger.Nop(), root)
	base.AddCommand(&cobra.Command{
		Use: "ping",
		RunE: func(*cobra.Command, []string) error {
			ran = true

			return nil
		},
	})

	assert.Same(t, root, base.RootCmd())
	root.SetArgs([]string{"ping"})
	require.NoError(t, base.Run())
	assert.True(t, ran)
}

//nolint:paralleltest // Uses t.Setenv
func Test_NewLogger(t *testing.T) {
	for _, format := range []string{"", "console", "human", "json"} {
		t.Run("format "+format, func(t *testing.T) {
			t.Setenv("LOG_FORMAT", format)

			lggr, err := NewLogger(zapcore.InfoLevel)
			require.NoError(t, err)
			require.NotNil(t, lggr)
		})
	}
}
