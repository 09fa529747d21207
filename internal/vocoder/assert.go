package vocoder

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// assertLogger is the process-wide sink for fatal diagnostics, grounded on
// _examples/original_source/src/Assert.h's BUNGEE_ASSERT -> Assert::fail ->
// abort() chain. It starts nil; SetAssertLogger installs one (vocoder.New
// does so on every construction, with the logger it was given).
var assertLogger *logrus.Logger

// SetAssertLogger installs the logger Fail reports to before aborting.
func SetAssertLogger(l *logrus.Logger) {
	assertLogger = l
}

// Fail reports a fatal programming error per SPEC_FULL.md §10.2: call-order
// violations, resample drift beyond tolerance, invalid ResampleMode, NaN
// where forbidden. It logs then aborts the process (logrus.Fatal calls
// os.Exit(1), the closest idiomatic Go analogue of abort() after flushing
// diagnostics); if no logger has been installed it panics instead, so the
// "abort after logging" contract holds even before a Stretcher exists.
func Fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if assertLogger != nil {
		assertLogger.Fatal(msg)
		return
	}
	panic(msg)
}
