// Command rsyncer runs and supervises rsync jobs.
package main

import (
	"os"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
