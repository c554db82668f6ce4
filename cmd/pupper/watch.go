package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pupperjs/core-sub000/cmd/pupper/internal/build"
	"github.com/pupperjs/core-sub000/cmd/pupper/internal/ui"
)

func newWatchCommand(flags *projectFlags) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile the project whenever a source changes",
		Long:  `Watches the source directory and recompiles changed components, showing a live dashboard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(flags)
			if err != nil {
				return err
			}
			defer p.Close()

			w, err := newWatcher(p, p.cfg.Dev.Debounce)
			if err != nil {
				return err
			}
			defer w.Close()

			if plain {
				return w.Run(cmd.Context(), logBuild)
			}
			return runDashboard(cmd.Context(), p, w)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Log builds instead of showing the dashboard")

	return cmd
}

// watcher rebuilds a project when its sources change
type watcher struct {
	p        *project
	fs       *fsnotify.Watcher
	debounce time.Duration
	requests chan []string
}

func newWatcher(p *project, debounce time.Duration) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &watcher{p: p, fs: fw, debounce: debounce, requests: make(chan []string, 1)}
	if err := w.addTree(p.cfg.SrcDir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *watcher) Close() error {
	return w.fs.Close()
}

func (w *watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Rebuild requests a full build
func (w *watcher) Rebuild() {
	select {
	case w.requests <- nil:
	default:
	}
}

// buildEvent is one build reported by Run
type buildEvent struct {
	started  bool
	changed  []string
	report   *build.Report
	err      error
	watchErr error
}

// Run builds once and then after every batch of changes until ctx ends
func (w *watcher) Run(ctx context.Context, notify func(buildEvent)) error {
	w.build(ctx, nil, notify)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var pending []string

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						notify(buildEvent{watchErr: err})
					}
					continue
				}
			}
			if !build.IsSource(event.Name) {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if w.p.cache != nil {
					w.p.cache.InvalidateSource(event.Name)
				}
				os.Remove(w.p.builder.OutputPath(event.Name))
			}
			pending = append(pending, event.Name)
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			notify(buildEvent{watchErr: err})

		case <-w.requests:
			w.build(ctx, nil, notify)

		case <-timer.C:
			changed := dedupe(pending)
			pending = nil
			w.build(ctx, changed, notify)
		}
	}
}

func (w *watcher) build(ctx context.Context, changed []string, notify func(buildEvent)) {
	notify(buildEvent{started: true, changed: changed})
	report, err := w.p.builder.Build(ctx)
	if ctx.Err() != nil {
		return
	}
	notify(buildEvent{changed: changed, report: report, err: err})
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func logBuild(e buildEvent) {
	switch {
	case e.watchErr != nil:
		log.Println("Watcher error:", e.watchErr)
	case e.started:
		if len(e.changed) > 0 {
			log.Printf("🔄 %s changed, rebuilding...", strings.Join(e.changed, ", "))
		}
	case e.err != nil:
		log.Printf("❌ Build failed: %v", e.err)
	default:
		for _, f := range e.report.Failed() {
			fmt.Fprintln(os.Stderr, ui.FormatError(f.Err))
		}
		log.Printf("✅ Built %d files (%d cached, %d failed) in %s",
			len(e.report.Files), e.report.Cached(), len(e.report.Failed()), e.report.Duration.Round(time.Millisecond))
	}
}

func runDashboard(ctx context.Context, p *project, w *watcher) error {
	model := ui.NewModel("pupper watch", p.cfg.SrcDir, w.Rebuild)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	// the dashboard owns the terminal
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.Run(loopCtx, func(e buildEvent) {
		switch {
		case e.watchErr != nil:
			program.Send(ui.WatchErrorMsg{Err: e.watchErr})
		case e.started:
			program.Send(ui.BuildStartedMsg{Changed: e.changed})
		default:
			program.Send(ui.BuildFinishedMsg{Report: e.report, Err: e.err})
		}
	})

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
