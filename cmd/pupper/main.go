package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pupperjs/core-sub000/cmd/pupper/internal/build"
	"github.com/pupperjs/core-sub000/cmd/pupper/internal/config"
	"github.com/pupperjs/core-sub000/cmd/pupper/internal/ui"
	"github.com/pupperjs/core-sub000/internal/cache"
	"github.com/pupperjs/core-sub000/pkg/debug"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

// projectFlags are shared by every command that works on a project
type projectFlags struct {
	dir     string
	noCache bool
	verbose bool
}

func main() {
	var flags projectFlags

	var rootCmd = &cobra.Command{
		Use:   "pupper",
		Short: "pupper - reactive pug-style components",
		Long: `pupper compiles indentation-based .pupper templates into component
modules and renders them with a reactive runtime.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				debug.EnableLogging(os.Stderr)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.dir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().BoolVar(&flags.noCache, "no-cache", false, "Disable the compile cache")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log runtime debug output")

	rootCmd.AddCommand(newCompileCommand(&flags))
	rootCmd.AddCommand(newRenderCommand(&flags))
	rootCmd.AddCommand(newWatchCommand(&flags))
	rootCmd.AddCommand(newDevCommand(&flags))
	rootCmd.AddCommand(newReplCommand(&flags))
	rootCmd.AddCommand(newCacheCommand(&flags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.FormatError(err))
		os.Exit(1)
	}
}

// project is a loaded configuration with the builder it drives
type project struct {
	cfg     *config.Config
	builder *build.Builder
	cache   *cache.Cache
}

func (p *project) Close() {
	if p.cache != nil {
		p.cache.Close()
	}
}

func openCache(cfg *config.Config) (*cache.Cache, error) {
	cc := cache.DefaultConfig()
	if cfg.Cache.Dir != "" {
		cc.Dir = cfg.Cache.Dir
	}
	cc.MaxSize = cfg.Cache.MaxSize
	cc.MaxAge = cfg.Cache.MaxAge
	return cache.New(cc)
}

// loadProject reads pupper.yml from the project directory. adjust applies
// command line overrides before the builder is created.
func loadProject(flags *projectFlags, adjust ...func(*config.Config)) (*project, error) {
	cfg, err := config.Load(flags.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", config.FileName, err)
	}
	cfg.SrcDir = resolve(flags.dir, cfg.SrcDir)
	cfg.OutDir = resolve(flags.dir, cfg.OutDir)
	for _, fn := range adjust {
		fn(cfg)
	}

	p := &project{cfg: cfg}
	if cfg.Cache.Enabled && !flags.noCache {
		c, err := openCache(cfg)
		if err != nil {
			log.Printf("⚠️  Failed to initialize compile cache: %v", err)
		} else {
			p.cache = c
		}
	}

	p.builder = build.New(build.Options{
		SrcDir: cfg.SrcDir,
		OutDir: cfg.OutDir,
		Styles: cfg.Compile.Styles,
		Debug:  cfg.Compile.Debug,
		Locals: cfg.Compile.Locals,
		Cache:  p.cache,
		Logger: log.Default(),
	})
	return p, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
