// Command linter runs the forbiddencalls analyzer over the module.
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/cm8me/shortener/cmd/linter/analyzer"
)

func main() {
	singlechecker.Main(analyzer.Analyzer)
}
