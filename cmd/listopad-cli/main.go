// Listopad CLI — инструмент командной строки для управления
// targets, runs и справочником каталогов через HTTP API.
//
// Использование:
//
//	listopad [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	target     Управление submission targets
//	run        Управление submission runs
//	directory  Справочник каталогов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/listopadhq/listopad/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "listopad",
		Short:         "Listopad CLI — directory listing submission tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTargetCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewDirectoryCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
