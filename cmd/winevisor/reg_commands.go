package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/winevisor/winevisor/internal/registry"
)

// RegFlags holds flags for the registry subcommands.
type RegFlags struct {
	Root   string
	Prefix string
	Hive   string
}

func hivePath(flags *RegFlags) string {
	return filepath.Join(flags.Root, flags.Prefix, flags.Hive)
}

func createRegCommand(wc command) *cobra.Command {
	flags := &RegFlags{}
	root := &cobra.Command{
		Use:   "reg",
		Short: "Read and edit registry hives inside a prefix",
	}
	root.PersistentFlags().StringVar(&flags.Root, "root", defaultPrefixRoot(), "directory holding all prefixes")
	root.PersistentFlags().StringVar(&flags.Prefix, "prefix", "default", "prefix name")
	root.PersistentFlags().StringVar(&flags.Hive, "hive", "user.reg", "hive file (user.reg or system.reg)")

	get := &cobra.Command{
		Use:   "get <key> <value>",
		Short: "Read a registry value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := registry.Load(hivePath(flags))
			if err != nil {
				return err
			}
			v, ok := h.GetString(args[0], args[1])
			if !ok {
				return fmt.Errorf("value %q not found under [%s]", args[1], args[0])
			}
			fmt.Println(v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value> <data>",
		Short: "Write a registry string value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := registry.Load(hivePath(flags))
			if err != nil {
				return err
			}
			h.SetString(args[0], args[1], args[2])
			return h.Save()
		},
	}

	del := &cobra.Command{
		Use:   "delete <key> [value]",
		Short: "Delete a registry value, or a whole key when no value is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := registry.Load(hivePath(flags))
			if err != nil {
				return err
			}
			var found bool
			if len(args) == 2 {
				found = h.DeleteValue(args[0], args[1])
			} else {
				found = h.DeleteKey(args[0])
			}
			if !found {
				return fmt.Errorf("no such key or value under [%s]", args[0])
			}
			return h.Save()
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List all keys in the hive",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := registry.Load(hivePath(flags))
			if err != nil {
				return err
			}
			for _, k := range h.Keys() {
				fmt.Println(k)
			}
			return nil
		},
	}

	root.AddCommand(get, set, del, keys)
	return root
}
