package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/geotag/internal/db"
	"github.com/banshee-data/geotag/internal/fsutil"
	"github.com/banshee-data/geotag/internal/report"
	"github.com/banshee-data/geotag/internal/security"
)

func reportCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dbPath := fs.String("db", db.DefaultPath, "SQLite database path")
	session := fs.String("session", "", "Session id (default: latest)")
	htmlOut := fs.String("html", "", "Write an interactive track chart to this file")
	pngOut := fs.String("png", "", "Write a track plot to this file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	store, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	var s db.Session
	if *session == "" {
		s, err = store.LatestSession()
	} else {
		s, err = store.GetSession(*session)
	}
	if err != nil {
		return err
	}
	recs, err := store.GeoFrames(s.ID)
	if err != nil {
		return err
	}

	summary := report.Summarize(s.ID, recs)
	if err := summary.WriteText(stdout); err != nil {
		return err
	}
	files := fsutil.OSFileSystem{}
	if *htmlOut != "" {
		if err := writeWith(files, *htmlOut, func(w io.Writer) error { return report.WriteHTML(w, summary, recs) }); err != nil {
			return err
		}
	}
	if *pngOut != "" {
		if err := writeWith(files, *pngOut, func(w io.Writer) error { return report.WritePNG(w, summary, recs) }); err != nil {
			return err
		}
	}
	return nil
}

func writeWith(files fsutil.FileSystem, name string, render func(io.Writer) error) error {
	name, err := security.ExportPath(name)
	if err != nil {
		return err
	}
	w, err := files.Create(name)
	if err != nil {
		return err
	}
	if err := render(w); err != nil {
		w.Close()
		return fmt.Errorf("render %s: %w", name, err)
	}
	return w.Close()
}

func sessionsCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	dbPath := fs.String("db", db.DefaultPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	store, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "no sessions recorded")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintln(stdout, s.String())
	}
	return nil
}
