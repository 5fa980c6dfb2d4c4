package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/winevisor/winevisor"
)

// PrefixFlags holds flags shared by the prefix subcommands.
type PrefixFlags struct {
	Root string
	Arch string
}

func defaultPrefixRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "winevisor", "prefixes")
	}
	return "prefixes"
}

func createPrefixCommand(wc command) *cobra.Command {
	flags := &PrefixFlags{}
	root := &cobra.Command{
		Use:   "prefix",
		Short: "Create and maintain prefix trees",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return wc.eng.UsePrefixManager(flags.Root)
		},
	}
	root.PersistentFlags().StringVar(&flags.Root, "root", defaultPrefixRoot(), "directory holding all prefixes")

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new prefix skeleton",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := wc.eng.Prefixes().Create(args[0], winevisor.ParseArch(flags.Arch))
			if err != nil {
				return err
			}
			fmt.Println(info.Path)
			return nil
		},
	}
	create.Flags().StringVar(&flags.Arch, "arch", "auto", "architecture (win32, win64, auto)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List prefixes under the root",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := wc.eng.Prefixes().List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tARCH\tSIZE\tCREATED")
			for _, i := range infos {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", i.Name, i.Arch, i.SizeBytes, i.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	info := &cobra.Command{
		Use:   "info <name>",
		Short: "Show prefix details and verify its structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := wc.eng.Prefixes().Inspect(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("name: %s\npath: %s\narch: %s\nsize: %d bytes\ncreated: %s\n",
				i.Name, i.Path, i.Arch, i.SizeBytes, i.CreatedAt.Format(time.RFC3339))
			if err := wc.eng.Prefixes().Verify(args[0]); err != nil {
				fmt.Printf("integrity: %v\n", err)
			} else {
				fmt.Println("integrity: ok")
			}
			return nil
		},
	}

	clone := &cobra.Command{
		Use:   "clone <src> <dst>",
		Short: "Copy an existing prefix under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := wc.eng.Prefixes().Clone(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(i.Path)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Back up and remove a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backup, err := wc.eng.Prefixes().Delete(args[0])
			if err != nil {
				return err
			}
			fmt.Println("backed up to", backup)
			return nil
		},
	}

	root.AddCommand(create, list, info, clone, del)
	return root
}
