// Package build compiles the .pupper files of a project, reusing cached
// modules for unchanged sources, and renders components on the server.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pupperjs/core-sub000/internal/cache"
	"github.com/pupperjs/core-sub000/pkg/compiler"
	"github.com/pupperjs/core-sub000/pkg/renderer"
	"github.com/pupperjs/core-sub000/pkg/styling"
)

// CompilerVersion is part of every cache key; bump it when the compiler
// output changes
const CompilerVersion = "pupper-compiler/1"

// Ext is the source file extension
const Ext = ".pupper"

// Options configures a Builder
type Options struct {
	SrcDir string
	OutDir string

	// Styles is the stylesheet bundle, relative to OutDir. Empty disables it.
	Styles string
	Debug  bool
	Locals map[string]any

	// Cache may be nil
	Cache  *cache.Cache
	Logger *log.Logger
}

// Artifact is the compiled form of one source file
type Artifact struct {
	Code       string   `json:"code"`
	Styles     []string `json:"styles,omitempty"`
	Components []string `json:"components,omitempty"`
	Imports    []string `json:"imports,omitempty"`
}

// IsModule reports whether the source declared components. Plain
// templates compile to a template function instead.
func (a *Artifact) IsModule() bool {
	return len(a.Components) > 0
}

// FileResult is the outcome of building one file
type FileResult struct {
	Source   string
	Output   string
	Artifact *Artifact
	Cached   bool
	Duration time.Duration
	Err      error
}

// Report summarizes a build
type Report struct {
	Files      []FileResult
	StylesPath string
	Duration   time.Duration
}

// Failed returns the results that have an error
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Cached counts the files served from the cache
func (r *Report) Cached() int {
	n := 0
	for _, f := range r.Files {
		if f.Cached {
			n++
		}
	}
	return n
}

// Builder compiles and renders project files
type Builder struct {
	opts   Options
	logger *log.Logger
}

// New creates a builder
func New(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Builder{opts: opts, logger: logger}
}

// Sources lists the source files below SrcDir in lexical order
func (b *Builder) Sources() ([]string, error) {
	var files []string
	err := filepath.WalkDir(b.opts.SrcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != b.opts.SrcDir && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSource(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", b.opts.SrcDir, err)
	}
	return files, nil
}

// IsSource reports whether path is a .pupper file
func IsSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Ext)
}

// OutputPath maps a source file to its compiled module
func (b *Builder) OutputPath(source string) string {
	rel, err := filepath.Rel(b.opts.SrcDir, source)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(source)
	}
	return filepath.Join(b.opts.OutDir, strings.TrimSuffix(rel, filepath.Ext(rel))+".js")
}

// CompileFile compiles one source file. The second result reports a
// cache hit.
func (b *Builder) CompileFile(path string) (*Artifact, bool, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	key := cache.Key(CompilerVersion, strconv.FormatBool(b.opts.Debug), filepath.ToSlash(path), string(src))
	if b.opts.Cache != nil {
		if data, ok := b.opts.Cache.Get(key); ok {
			var art Artifact
			if err := json.Unmarshal(data, &art); err == nil {
				return &art, true, nil
			}
			b.logger.Printf("Warning: dropping unreadable cache entry for %s", path)
		}
	}

	res, err := compiler.Compile(string(src), compiler.Options{
		Debug:    b.opts.Debug,
		FileName: path,
		Logger:   b.logger,
	})
	if err != nil {
		return nil, false, err
	}

	art := &Artifact{Code: res.Code, Styles: res.Styles}
	for _, c := range res.Components {
		name := c.Name
		if c.Default {
			name = "default"
		}
		art.Components = append(art.Components, name)
	}
	for _, imp := range res.Imports {
		art.Imports = append(art.Imports, imp.Path)
	}

	if b.opts.Cache != nil {
		data, err := json.Marshal(art)
		if err == nil {
			err = b.opts.Cache.Put(key, path, data)
		}
		if err != nil {
			b.logger.Printf("Warning: failed to cache %s: %v", path, err)
		}
	}
	return art, false, nil
}

// BuildFile compiles one source file and writes its module
func (b *Builder) BuildFile(path string) FileResult {
	start := time.Now()
	res := FileResult{Source: path, Output: b.OutputPath(path)}

	res.Artifact, res.Cached, res.Err = b.CompileFile(path)
	if res.Err == nil {
		res.Err = writeFile(res.Output, []byte(res.Artifact.Code))
	}
	res.Duration = time.Since(start)
	return res
}

// Build compiles every source file and writes the stylesheet bundle.
// Compile errors are reported per file; the error result is reserved for
// failures that stop the build.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	start := time.Now()
	files, err := b.Sources()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	styles := styling.NewRegistry()
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := b.BuildFile(file)
		if res.Err != nil {
			b.logger.Printf("❌ %s: %v", file, res.Err)
		} else {
			for _, css := range res.Artifact.Styles {
				styles.Add(css)
			}
		}
		report.Files = append(report.Files, res)
	}

	if b.opts.Styles != "" {
		report.StylesPath = filepath.Join(b.opts.OutDir, b.opts.Styles)
		if err := writeFile(report.StylesPath, []byte(styles.CSS())); err != nil {
			return nil, err
		}
	}
	report.Duration = time.Since(start)
	return report, nil
}

// Render compiles the component in path with its imports and returns the
// markup it renders with props. A plain template is rendered with props
// as its locals.
func (b *Builder) Render(path string, props map[string]any) (string, error) {
	art, _, err := b.CompileFile(path)
	if err != nil {
		return "", err
	}
	if !art.IsModule() {
		return b.renderTemplate(path, props)
	}

	r := renderer.New(renderer.Config{Logger: b.logger})
	defer r.Dispose()

	def, err := b.load(r, path, make(map[string]*renderer.Definition), nil)
	if err != nil {
		return "", err
	}
	if _, err := r.MountComponent(def, props); err != nil {
		return "", fmt.Errorf("failed to mount %s: %w", path, err)
	}
	r.Flush()
	return r.HTML(), nil
}

// RenderModule renders the default component of a compiled module that
// imports nothing
func RenderModule(code string, props map[string]any, logger *log.Logger) (string, error) {
	r := renderer.New(renderer.Config{Logger: logger})
	defer r.Dispose()

	def, err := r.LoadModule(code, nil)
	if err != nil {
		return "", err
	}
	if _, err := r.MountComponent(def, props); err != nil {
		return "", err
	}
	r.Flush()
	return r.HTML(), nil
}

func (b *Builder) renderTemplate(path string, props map[string]any) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	locals := make(map[string]any, len(b.opts.Locals)+len(props))
	for k, v := range b.opts.Locals {
		locals[k] = v
	}
	for k, v := range props {
		locals[k] = v
	}
	return compiler.CompileTemplate(string(src), compiler.Options{
		Debug:    b.opts.Debug,
		FileName: path,
		Locals:   locals,
	})
}

// load turns path into a definition, loading its imports first so the
// module resolver only looks them up
func (b *Builder) load(r *renderer.Renderer, path string, loaded map[string]*renderer.Definition, stack []string) (*renderer.Definition, error) {
	path = filepath.Clean(path)
	if def, ok := loaded[path]; ok {
		return def, nil
	}
	for _, p := range stack {
		if p == path {
			return nil, fmt.Errorf("import cycle: %s -> %s", strings.Join(stack, " -> "), path)
		}
	}
	stack = append(stack, path)

	art, _, err := b.CompileFile(path)
	if err != nil {
		return nil, err
	}

	var def *renderer.Definition
	if art.IsModule() {
		for _, imp := range art.Imports {
			if _, err := b.load(r, ResolveImport(path, imp), loaded, stack); err != nil {
				return nil, err
			}
		}
		def, err = r.LoadModule(art.Code, func(imp string) (*renderer.Definition, error) {
			if def, ok := loaded[ResolveImport(path, imp)]; ok {
				return def, nil
			}
			return nil, fmt.Errorf("%s was not loaded", imp)
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		html, err := b.renderTemplate(path, nil)
		if err != nil {
			return nil, err
		}
		def = &renderer.Definition{Template: html}
	}

	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	loaded[path] = def
	return def, nil
}

// ResolveImport resolves an import path against the importing file. A
// path without an extension names a .pupper file.
func ResolveImport(from, imp string) string {
	p := filepath.FromSlash(imp)
	if filepath.Ext(p) == "" {
		p += Ext
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(from), p)
	}
	return filepath.Clean(p)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
