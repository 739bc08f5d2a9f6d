// Command networthctl values a records file offline and exercises the
// depreciation and text-parsing rules from the command line.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// register adds every networthctl subcommand to c.
func register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&valuateCmd{}, "valuation")
	c.Register(&depreciateCmd{}, "valuation")
	c.Register(&parseCmd{}, "records")
}
