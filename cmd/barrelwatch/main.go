// barrelwatch keeps index.ts barrel files in sync with the folders they
// re-export.
package main

import (
	"os"

	"github.com/hupe1980/barrelwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
