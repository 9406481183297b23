// restplot - REST proxy request timing plotter
//
// restplot extracts request execution times from REST proxy logs and plots
// them over time as a sliding average.
package main

import (
	"os"

	"github.com/ccollicutt/restplot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
