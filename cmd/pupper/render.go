package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRenderCommand(flags *projectFlags) *cobra.Command {
	var dataFile string
	var sets []string
	var withStyles bool

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a component to HTML",
		Long: `Compiles a component with its imports, mounts it with the reactive
runtime and prints the resulting markup. Without a file the entry
component from pupper.yml is rendered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := readProps(dataFile, sets)
			if err != nil {
				return err
			}
			p, err := loadProject(flags)
			if err != nil {
				return err
			}
			defer p.Close()

			file := p.cfg.EntryPath()
			if len(args) == 1 {
				file = args[0]
			}
			html, err := p.builder.Render(file, props)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if withStyles {
				art, _, err := p.builder.CompileFile(file)
				if err == nil && len(art.Styles) > 0 {
					fmt.Fprintf(out, "<style>\n%s\n</style>\n", strings.Join(art.Styles, "\n"))
				}
			}
			fmt.Fprintln(out, html)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "YAML file with the props to render with")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a prop, as name=value (value parsed as YAML)")
	cmd.Flags().BoolVar(&withStyles, "styles", false, "Prepend the component styles")

	return cmd
}

// readProps loads props from a YAML file and applies name=value overrides
func readProps(file string, sets []string) (map[string]any, error) {
	props := make(map[string]any)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file: %w", err)
		}
		if err := yaml.Unmarshal(data, &props); err != nil {
			return nil, fmt.Errorf("failed to parse data file: %w", err)
		}
	}
	for _, s := range sets {
		name, raw, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", s)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		props[name] = v
	}
	return props, nil
}
