package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pupperjs/core-sub000/cmd/pupper/internal/config"
	"github.com/pupperjs/core-sub000/cmd/pupper/internal/ui"
	"github.com/pupperjs/core-sub000/pkg/compiler"
)

func newCompileCommand(flags *projectFlags) *cobra.Command {
	var output string
	var stdout bool

	cmd := &cobra.Command{
		Use:   "compile [files...]",
		Short: "Compile .pupper files into component modules",
		Long: `Compiles every .pupper file of the project, or the given files, into
JavaScript component modules and collects their styles into one bundle.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdout {
				return compileToStdout(args)
			}
			return runCompile(cmd.Context(), flags, output, args)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (overrides pupper.yml)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the compiled modules instead of writing them")

	return cmd
}

func runCompile(ctx context.Context, flags *projectFlags, output string, files []string) error {
	p, err := loadProject(flags, func(cfg *config.Config) {
		if output != "" {
			cfg.OutDir = output
		}
	})
	if err != nil {
		return err
	}
	defer p.Close()

	if len(files) > 0 {
		failed := 0
		for _, file := range files {
			res := p.builder.BuildFile(file)
			if res.Err != nil {
				failed++
				fmt.Fprintln(os.Stderr, ui.FormatError(res.Err))
				continue
			}
			log.Printf("✅ %s -> %s", file, res.Output)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed to compile", failed, len(files))
		}
		return nil
	}

	log.Printf("🔨 Compiling %s...", p.cfg.SrcDir)
	report, err := p.builder.Build(ctx)
	if err != nil {
		return err
	}
	for _, f := range report.Failed() {
		fmt.Fprintln(os.Stderr, ui.FormatError(f.Err))
	}
	if n := len(report.Failed()); n > 0 {
		return fmt.Errorf("%d of %d files failed to compile", n, len(report.Files))
	}
	log.Printf("✅ Compiled %d files (%d cached) in %s", len(report.Files), report.Cached(), report.Duration)
	if report.StylesPath != "" {
		log.Printf("🎨 Styles written to %s", report.StylesPath)
	}
	return nil
}

func compileToStdout(files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("--stdout needs at least one file")
	}
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		res, err := compiler.Compile(string(src), compiler.Options{FileName: filepath.ToSlash(file)})
		if err != nil {
			return err
		}
		fmt.Println(res.Code)
	}
	return nil
}
