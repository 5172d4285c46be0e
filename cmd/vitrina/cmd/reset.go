package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitrina-app/vitrina/internal/config"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the stored session files",
	Long: `Remove the session storage from disk without contacting the backend.
Unlike logout, the tokens stay valid server-side; use this when the storage
is damaged or the backend is gone.

For the file driver this removes storage.path and its lock file; for the
sqlite driver, the database and its WAL files. Other drivers keep nothing on
disk.

Examples:
  # Interactive confirmation
  vitrina reset

  # No prompt
  vitrina reset --force`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

// resetTarget is a file reset removes.
type resetTarget struct {
	path string
	desc string
}

// resetTargets lists the files the storage driver keeps on disk.
func resetTargets(cfg *config.Config) []resetTarget {
	path := cfg.Storage.Path
	switch cfg.Storage.Driver {
	case config.StorageFile:
		return []resetTarget{
			{path, "session file"},
			{path + ".lock", "session file lock"},
		}
	case config.StorageSQLite:
		return []resetTarget{
			{path, "session database"},
			{path + "-wal", "database WAL"},
			{path + "-shm", "database shared memory"},
		}
	default:
		return nil
	}
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	stderr := cmd.ErrOrStderr()

	var existing []resetTarget
	for _, t := range resetTargets(cfg) {
		if _, err := os.Stat(t.path); err == nil {
			existing = append(existing, t)
		}
	}
	if len(existing) == 0 {
		fmt.Fprintln(stderr, "Nothing to reset, no session files found.")
		return nil
	}

	fmt.Fprintln(stderr, "The following will be removed:")
	for _, t := range existing {
		fmt.Fprintf(stderr, "  - %s (%s)\n", t.path, t.desc)
	}

	if !resetForce {
		fmt.Fprint(stderr, "\nProceed? [y/N] ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(stderr, "Aborted.")
			return nil
		}
	}

	var failed int
	for _, t := range existing {
		if err := os.Remove(t.path); err != nil {
			fmt.Fprintf(stderr, "  ERROR removing %s: %v\n", t.path, err)
			failed++
		} else {
			fmt.Fprintf(stderr, "  Removed %s\n", t.path)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be removed", failed)
	}

	fmt.Fprintln(stderr, "\nReset complete. The next command starts logged out.")
	return nil
}
