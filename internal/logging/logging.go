// Package logging holds klog verbosity levels and setup shared by the Lambdas and the probe.
package logging

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"k8s.io/klog/v2"
)

const (
	ERROR   = 1
	WARNING = 2
	INFO    = 3
	DEBUG   = 4
	TRACE   = 5
)

// InitFromEnv configures klog for a Lambda runtime, where there are no command
// line flags. LOG_VERBOSITY sets -v (default INFO).
func InitFromEnv() {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)

	v := strings.TrimSpace(os.Getenv("LOG_VERBOSITY"))
	if v == "" {
		v = strconv.Itoa(INFO)
	}
	if err := fs.Set("v", v); err != nil {
		klog.ErrorS(err, "invalid LOG_VERBOSITY, using INFO", "value", v)
		_ = fs.Set("v", strconv.Itoa(INFO))
	}
}
