/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package main

import (
	"os"

	"github.com/fulmenhq/guidekit/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
