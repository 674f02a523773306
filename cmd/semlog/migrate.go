package main

import (
	"fmt"
	"io/fs"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/semlog/internal/db"
)

var (
	migrateDB  string
	migrateDev bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: withMigrations(func(cmd *cobra.Command, store *db.DB, m fs.FS, args []string) error {
		if err := store.MigrateUp(m); err != nil {
			return err
		}
		return printStatus(cmd, store, m)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: withMigrations(func(cmd *cobra.Command, store *db.DB, m fs.FS, args []string) error {
		if err := store.MigrateDown(m); err != nil {
			return err
		}
		return printStatus(cmd, store, m)
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current and latest schema versions",
	Args:  cobra.NoArgs,
	RunE: withMigrations(func(cmd *cobra.Command, store *db.DB, m fs.FS, args []string) error {
		return printStatus(cmd, store, m)
	}),
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations, clearing the dirty flag",
	Args:  cobra.ExactArgs(1),
	RunE: withMigrations(func(cmd *cobra.Command, store *db.DB, m fs.FS, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		if err := store.MigrateForce(m, v); err != nil {
			return err
		}
		return printStatus(cmd, store, m)
	}),
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDB, "db", "semlog.db", "SQLite database")
	migrateCmd.PersistentFlags().BoolVar(&migrateDev, "dev", false, "Read migrations from "+db.MigrationsDir+" instead of the binary")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd, migrateForceCmd)
}

type migrateFunc func(cmd *cobra.Command, store *db.DB, migrations fs.FS, args []string) error

// withMigrations opens --db without migrating it and resolves the
// migration source before running fn.
func withMigrations(fn migrateFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db.DevMode = migrateDev
		m, err := db.Migrations()
		if err != nil {
			return err
		}
		store, err := db.OpenDB(migrateDB)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, store, m, args)
	}
}

func printStatus(cmd *cobra.Command, store *db.DB, m fs.FS) error {
	st, err := store.Status(m)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d", st.Current, st.Latest)
	if st.Dirty {
		fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
	}
	if n := st.Pending(); n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d pending", n)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
