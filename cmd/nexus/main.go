// Command nexus is the entrypoint binary: a thin main() that hands off to
// the cobra command tree, following curaious-uno's cmd.Execute() split
// between main.go and the cmd package holding the actual subcommands.
package main

import "github.com/grafbase/nexus/cmd/nexus/cmd"

func main() {
	cmd.Execute()
}
