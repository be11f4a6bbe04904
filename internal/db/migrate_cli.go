package db

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// MigrateCommand runs the 'migrate' subcommand against one database.
type MigrateCommand struct {
	DBPath     string
	Migrations fs.FS
	Out        io.Writer
	In         io.Reader
}

// RunMigrateCommand handles 'geotag migrate <action>' with the embedded
// migrations on stdout/stdin.
func RunMigrateCommand(args []string, dbPath string) error {
	c := MigrateCommand{DBPath: dbPath, Migrations: MigrationsFS(), Out: os.Stdout, In: os.Stdin}
	return c.Run(args)
}

// Run dispatches a migrate action.
func (c MigrateCommand) Run(args []string) error {
	if len(args) < 1 || args[0] == "help" {
		c.printHelp()
		if len(args) < 1 {
			return fmt.Errorf("missing migrate action")
		}
		return nil
	}
	action := args[0]

	needsVersion := action == "version" || action == "force" || action == "baseline"
	var versionArg int
	if needsVersion {
		if len(args) < 2 {
			return fmt.Errorf("usage: geotag migrate %s <version_number>", action)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		versionArg = v
	}

	switch action {
	case "up", "down", "status", "version", "force", "baseline":
	default:
		c.printHelp()
		return fmt.Errorf("unknown migrate action: %s", action)
	}

	// The schema is left alone on open; migrations manage it.
	database, err := OpenDB(c.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(c.Migrations); err != nil {
			return err
		}
		fmt.Fprintln(c.Out, "✓ All migrations applied successfully")
		return c.printVersion(database)
	case "down":
		if err := database.MigrateDown(c.Migrations); err != nil {
			return err
		}
		fmt.Fprintln(c.Out, "✓ Migration rolled back successfully")
		return c.printVersion(database)
	case "status":
		return c.printStatus(database)
	case "version":
		if err := database.MigrateTo(c.Migrations, uint(versionArg)); err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "✓ Migrated to version %d successfully\n", versionArg)
		return nil
	case "force":
		if !c.confirm(fmt.Sprintf("⚠️  WARNING: Forcing migration version to %d\nThis should only be used to recover from a dirty migration state.\nContinue? [y/N]: ", versionArg)) {
			fmt.Fprintln(c.Out, "Aborted")
			return nil
		}
		if err := database.MigrateForce(c.Migrations, versionArg); err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "✓ Migration version forced to %d\n", versionArg)
		return nil
	default: // baseline
		if err := database.BaselineAtVersion(uint(versionArg)); err != nil {
			return fmt.Errorf("baseline failed: %w", err)
		}
		fmt.Fprintf(c.Out, "✓ Database baselined at version %d\n", versionArg)
		return nil
	}
}

func (c MigrateCommand) confirm(prompt string) bool {
	fmt.Fprint(c.Out, prompt)
	if c.In == nil {
		return false
	}
	line, _ := bufio.NewReader(c.In).ReadString('\n')
	line = strings.TrimSpace(line)
	return line == "y" || line == "Y"
}

func (c MigrateCommand) printVersion(database *DB) error {
	version, dirty, err := database.MigrateVersion(c.Migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func (c MigrateCommand) printStatus(database *DB) error {
	st, err := database.GetMigrationStatus(c.Migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintln(c.Out, "=== Migration Status ===")
	fmt.Fprintf(c.Out, "Current version: %d\n", st.Current)
	fmt.Fprintf(c.Out, "Latest available: %d\n", st.Latest)
	fmt.Fprintf(c.Out, "Dirty: %v\n", st.Dirty)
	fmt.Fprintf(c.Out, "Schema migrations table exists: %v\n", st.TableExists)
	switch {
	case st.Dirty:
		fmt.Fprintln(c.Out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(c.Out, "Inspect the database, then run: geotag migrate force <version>")
	case st.AheadOfFiles:
		fmt.Fprintln(c.Out, "\n⚠️  Database is newer than this binary's migrations.")
	case st.Outstanding > 0:
		fmt.Fprintf(c.Out, "\n⚠️  Database is %d version(s) behind. Run 'geotag migrate up' to update.\n", st.Outstanding)
	default:
		fmt.Fprintln(c.Out, "\n✓ Database is up to date!")
	}
	return nil
}

func (c MigrateCommand) printHelp() {
	fmt.Fprint(c.Out, `Database Migration Commands

Usage: geotag migrate <command> [options]

Commands:
  up              Apply all pending migrations
  down            Rollback one migration
  status          Show current migration status and version
  version <N>     Migrate to specific version N
  force <N>       Force migration version to N (recovery only)
  baseline <N>    Set migration version to N without running migrations
  help            Show this help message

Options:
  -db <path>      Path to database file (default: images.db)
`)
}
