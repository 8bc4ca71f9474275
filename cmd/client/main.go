package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/estately/internal/client/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
