package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dinesync/dinesync/internal/seed"
)

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import restaurant records from a JSONL seed file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		env, cleanup := openEnv(cmd)
		defer cleanup()

		if env.store == nil {
			fmt.Fprintln(os.Stderr, "Error: local storage unavailable, nothing to import into")
			os.Exit(1)
		}

		n, err := seed.Import(cmd.Context(), env.store, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing (%d records written): %v\n", n, err)
			os.Exit(1)
		}
		fmt.Printf("Imported %d restaurants\n", n)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file.jsonl>",
	Short: "Export cached restaurant records to a JSONL file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		env, cleanup := openEnv(cmd)
		defer cleanup()

		if env.store == nil {
			fmt.Fprintln(os.Stderr, "Error: local storage unavailable, nothing to export")
			os.Exit(1)
		}

		n, err := seed.Export(cmd.Context(), env.store, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d restaurants\n", n)
	},
}
