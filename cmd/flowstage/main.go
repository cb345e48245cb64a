// flowstage CLI - run demo pipelines and inspect the run journal.
package main

import (
	"os"

	"github.com/randalmurphal/flowstage/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
