package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/winevisor/winevisor/internal/logger"
)

func defaultConfigDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "winevisor")
	}
	return "."
}

func defaultShortcutsFile() string {
	return filepath.Join(defaultConfigDir(), "shortcuts.conf")
}

func defaultLogFile() string {
	return filepath.Join(defaultConfigDir(), "logs", "winevisor.log")
}

func createShortcutCommand(wc command) *cobra.Command {
	var file string
	root := &cobra.Command{
		Use:   "shortcut",
		Short: "Manage named launch targets",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return wc.eng.UseShortcuts(file)
		},
	}
	root.PersistentFlags().StringVar(&file, "file", defaultShortcutsFile(), "shortcut store file")

	add := &cobra.Command{
		Use:   "add <name> <executable>",
		Short: "Register a shortcut for an executable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wc.eng.Shortcuts().Add(args[0], args[1])
		},
	}

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Drop a shortcut",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wc.eng.Shortcuts().Remove(args[0])
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered shortcuts",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tPATH")
			for _, e := range wc.eng.Shortcuts().List() {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Path)
			}
			return w.Flush()
		},
	}

	run := &cobra.Command{
		Use:   "run <name> [args...]",
		Short: "Launch a shortcut's target and print its pid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := wc.eng.RunShortcut(args[0], args[1:]...)
			if err != nil {
				return err
			}
			fmt.Println(pid)
			return nil
		},
	}

	root.AddCommand(add, remove, list, run)
	return root
}

func createLogsCommand(wc command) *cobra.Command {
	var (
		file  string
		count int
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent entries from the engine log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := logger.Recent(file, count)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", defaultLogFile(), "log file to read")
	cmd.Flags().IntVar(&count, "count", 50, "number of entries to show")
	return cmd
}
