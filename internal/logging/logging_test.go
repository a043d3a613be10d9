package logging

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func resetVerbosity(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		fs := flag.NewFlagSet("reset", flag.ContinueOnError)
		klog.InitFlags(fs)
		require.NoError(t, fs.Set("v", "0"))
	})
}

func TestInitFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		value         string
		enabledUpTo   int
		firstOffLevel int
	}{
		{name: "Default is INFO", value: "", enabledUpTo: INFO, firstOffLevel: DEBUG},
		{name: "Explicit TRACE", value: "5", enabledUpTo: TRACE, firstOffLevel: TRACE + 1},
		{name: "Explicit ERROR", value: " 1 ", enabledUpTo: ERROR, firstOffLevel: WARNING},
		{name: "Invalid falls back to INFO", value: "loud", enabledUpTo: INFO, firstOffLevel: DEBUG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetVerbosity(t)
			t.Setenv("LOG_VERBOSITY", tt.value)

			InitFromEnv()

			assert.True(t, klog.V(klog.Level(tt.enabledUpTo)).Enabled())
			assert.False(t, klog.V(klog.Level(tt.firstOffLevel)).Enabled())
		})
	}
}
