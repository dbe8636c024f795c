package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/hupe1980/roundtable/internal/cli"
)

func main() {
	root := cli.NewRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}
