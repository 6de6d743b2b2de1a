// Command flake re-runs failed protractor specs until they pass or the
// attempt limit is reached.
package main

import (
	"os"

	"github.com/Iron-Ham/flake/internal/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
