package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pupperjs/core-sub000/cmd/pupper/internal/build"
	"github.com/pupperjs/core-sub000/cmd/pupper/internal/ui"
	"github.com/pupperjs/core-sub000/pkg/compiler"
)

const replHelp = `Type template lines; an empty line renders them.
Commands:
  :set name value   set a local (value parsed as YAML)
  :unset name       remove a local
  :locals           list the locals
  :mode html|code   print rendered HTML or the compiled module
  :render file      render a component file
  :clear            discard the pending lines
  :quit             leave`

// repl keeps the state of an interactive session
type repl struct {
	p       *project
	out     io.Writer
	locals  map[string]any
	lines   []string
	code    bool
	history string
}

func newReplCommand(flags *projectFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Try templates interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(flags)
			if err != nil {
				return err
			}
			defer p.Close()

			r := newRepl(p, cmd.OutOrStdout())
			if home, err := os.UserHomeDir(); err == nil {
				r.history = filepath.Join(home, ".pupper_history")
			}
			return r.Run()
		},
	}
}

func newRepl(p *project, out io.Writer) *repl {
	locals := make(map[string]any)
	for k, v := range p.cfg.Compile.Locals {
		locals[k] = v
	}
	return &repl{p: p, out: out, locals: locals}
}

func (r *repl) Run() error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(r.complete)

	if r.history != "" {
		if f, err := os.Open(r.history); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(r.history); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	fmt.Fprintln(r.out, "pupper repl, :help for commands")
	for {
		prompt := "pupper> "
		if len(r.lines) > 0 {
			prompt = "   ...> "
		}
		input, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			r.lines = nil
			continue
		}
		if err != nil {
			// io.EOF on ctrl+d
			fmt.Fprintln(r.out)
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if r.Eval(input) {
			return nil
		}
	}
}

// Eval handles one input line and reports whether the session ends
func (r *repl) Eval(input string) bool {
	trimmed := strings.TrimSpace(input)
	if len(r.lines) == 0 && strings.HasPrefix(trimmed, ":") {
		return r.command(trimmed)
	}
	if trimmed == "" {
		if len(r.lines) > 0 {
			r.flush()
		}
		return false
	}
	r.lines = append(r.lines, strings.TrimRight(input, " \t"))
	return false
}

func (r *repl) command(input string) bool {
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		fmt.Fprintln(r.out, replHelp)
	case ":set":
		key, raw, ok := strings.Cut(rest, " ")
		if !ok || key == "" {
			fmt.Fprintln(r.out, "usage: :set name value")
			break
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			fmt.Fprintln(r.out, "invalid value:", err)
			break
		}
		r.locals[key] = v
	case ":unset":
		delete(r.locals, rest)
	case ":locals":
		keys := make([]string, 0, len(r.locals))
		for k := range r.locals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(r.out, "%s = %v\n", k, r.locals[k])
		}
	case ":mode":
		switch rest {
		case "html":
			r.code = false
		case "code":
			r.code = true
		default:
			fmt.Fprintln(r.out, "usage: :mode html|code")
		}
	case ":render":
		html, err := r.p.builder.Render(rest, r.locals)
		if err != nil {
			fmt.Fprintln(r.out, ui.FormatError(err))
			break
		}
		fmt.Fprintln(r.out, html)
	case ":clear":
		r.lines = nil
	default:
		fmt.Fprintf(r.out, "unknown command %s, :help lists them\n", name)
	}
	return false
}

// flush compiles the pending lines. Sources declaring components are
// rendered with the runtime, plain templates with the locals.
func (r *repl) flush() {
	src := strings.Join(r.lines, "\n")
	r.lines = nil

	res, err := compiler.Compile(src, compiler.Options{FileName: "repl"})
	if err != nil {
		fmt.Fprintln(r.out, ui.FormatError(err))
		return
	}
	if r.code {
		fmt.Fprintln(r.out, res.Code)
		return
	}

	var html string
	if len(res.Components) == 0 {
		html, err = compiler.CompileTemplate(src, compiler.Options{FileName: "repl", Locals: r.locals})
	} else {
		html, err = build.RenderModule(res.Code, r.locals, nil)
	}
	if err != nil {
		fmt.Fprintln(r.out, ui.FormatError(err))
		return
	}
	fmt.Fprintln(r.out, html)
}

func (r *repl) complete(line string) []string {
	var out []string
	for _, c := range []string{":help", ":set ", ":unset ", ":locals", ":mode html", ":mode code", ":render ", ":clear", ":quit"} {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}
