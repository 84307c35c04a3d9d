// Package version carries the build identity stamped into the ffvm binary.
package version

import "fmt"

// VERSION is the engine release.
const VERSION = "1.0.0"

// COMMIT is overridden by the build with the source revision.
var COMMIT = "dev"

// Version renders the full version string shown by ffvm --version.
func Version() string {
	return fmt.Sprintf("%s (%s)", VERSION, COMMIT)
}
