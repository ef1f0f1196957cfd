package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sysds/sysds/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
