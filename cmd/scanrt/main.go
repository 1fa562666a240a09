// Command scanrt runs a control program on a fixed scan cycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/tebeka/atexit"

	"github.com/roach88/scanrt/internal/cli"
)

func main() {
	// A missing .env is normal; a malformed one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "scanrt: .env: %v\n", err)
		atexit.Exit(cli.ExitCommandError)
	}

	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "scanrt: %v\n", err)
	}
	atexit.Exit(cli.GetExitCode(err))
}
