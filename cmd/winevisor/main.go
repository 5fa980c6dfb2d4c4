package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/winevisor/winevisor"
	"github.com/winevisor/winevisor/internal/logger"
)

var version = "dev"

func main() {
	// subcommands register their own PersistentPreRunE; run the whole chain
	cobra.EnableTraverseRunHooks = true
	eng := winevisor.New()
	root := buildRoot(eng)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
	LogFile    string
}

func buildRoot(eng *winevisor.Engine) *cobra.Command {
	flags := &GlobalFlags{}
	wc := command{eng: eng, flags: flags}

	root := &cobra.Command{
		Use:   "winevisor",
		Short: "Windows executable launcher and lifecycle supervisor",
		Long: `Winevisor launches Windows binaries under a compatibility layer and
supervises their full lifecycle: resource monitoring, signal control,
prefix management, and launch history.

Examples:
  winevisor run /games/app.exe --flag
  winevisor exec ./installer.msi
  winevisor ps
  winevisor serve --listen :8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetupWithFile(logger.ParseLevel(flags.LogLevel), true, flags.LogFile)
			return wc.applyConfig()
		},
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.LogFile, "log-file", "", "also write engine logs to this rotating file")

	cmds := []*cobra.Command{
		createRunCommand(wc),
		createExecCommand(wc),
		createPsCommand(wc),
	}
	cmds = append(cmds, createSignalCommands(wc)...)
	cmds = append(cmds,
		createForgetCommand(wc),
		createShortcutCommand(wc),
		createPrefixCommand(wc),
		createRegCommand(wc),
		createConfigShowCommand(wc),
		createHistoryCommand(wc),
		createLogsCommand(wc),
		createServeCommand(wc),
		createVersionCommand(),
	)
	root.AddCommand(cmds...)
	return root
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("winevisor", version)
		},
	}
}
