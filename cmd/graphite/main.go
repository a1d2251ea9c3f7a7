// Command graphite runs, validates and inspects reactive dataflow blueprints.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/roach88/graphite/internal/cli"
)

func main() {
	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// run executes the root command against the given streams.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	cmd := cli.NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
