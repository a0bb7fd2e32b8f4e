package main

import (
	"context"
	"os"

	"github.com/sjc5/kiln/internal/cli"
	"github.com/sjc5/kit/pkg/colorlog"
)

func main() {
	if err := cli.Execute(context.Background(), os.Args[1:]); err != nil {
		(&colorlog.Log{}).Errorf("%v", err)
		os.Exit(1)
	}
}
