// StoryForge CLI — инструмент командной строки для управления
// прогонами, сессиями и скачиваниями через HTTP API.
//
// Использование:
//
//	storyforge [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	run       Управление прогоном
//	session   Работа с сохранёнными сессиями
//	download  Постановка скачиваний
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veresk/storyforge/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "storyforge",
		Short:         "StoryForge CLI — generation workflow tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewSessionCmd(clientFn, outputFn),
		cli.NewDownloadCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
