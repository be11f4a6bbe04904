// Command geotag captures camera frames and tags each one with the latest
// position fix from gpsd or an NMEA receiver.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/geotag/internal/db"
	"github.com/banshee-data/geotag/internal/gpsfix"
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout))
}

// realMain dispatches a subcommand and returns the process exit code.
func realMain(args []string, stdout io.Writer) int {
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCommand(args, stdout)
	case "migrate":
		err = migrateCommand(args)
	case "report":
		err = reportCommand(args, stdout)
	case "sessions":
		err = sessionsCommand(args, stdout)
	case "help":
		printUsage(stdout)
		return 0
	default:
		printUsage(stdout)
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.Printf("geotag %s: %v", cmd, err)
	}
	return exitCodeFor(err)
}

// exitCodeFor maps a fatal error to the process exit status: 2 for a fix
// source fault, 1 for anything else.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, gpsfix.ErrSource):
		return 2
	default:
		return 1
	}
}

func migrateCommand(args []string) error {
	dbPath := db.DefaultPath
	if len(args) >= 2 && (args[0] == "-db" || args[0] == "--db") {
		dbPath, args = args[1], args[2:]
	}
	return db.RunMigrateCommand(args, dbPath)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: geotag [command] [flags]

Commands:
  run        Capture and tag frames (default)
  migrate    Manage the database schema (geotag migrate help)
  report     Summarise a capture session
  sessions   List recorded sessions
  help       Show this help message

Run 'geotag <command> -h' for command flags.
`)
}
