// Command tometrove manages an ebook library: a directory tree of book files
// kept in sync with a metadata catalog.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tometrove/tometrove/internal/errors"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout)
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error:"), err)
		return errors.CodeOf(err).ExitCode()
	}
	return 0
}
