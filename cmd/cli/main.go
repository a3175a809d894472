// matchlog - Match Log Recorder
//
// matchlog ingests per-match game log files into a local database and answers
// statistics and filter queries over the recorded games.
package main

import (
	"os"

	"github.com/ccollicutt/matchlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
