package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pupperjs/core-sub000/internal/cache"
)

func writeSources(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestBuilder(t *testing.T, files map[string]string) (*Builder, string) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeSources(t, src, files)

	c, err := cache.New(cache.Config{Dir: filepath.Join(root, "cache")})
	if err != nil {
		t.Fatal(err)
	}
	return New(Options{
		SrcDir: src,
		OutDir: filepath.Join(root, "dist"),
		Styles: "styles.css",
		Cache:  c,
	}), src
}

const counter = `template
  button(@click="count++") {{ count }}
data
  count: 1
style
  button { color: red }
`

func TestBuild(t *testing.T) {
	b, src := newTestBuilder(t, map[string]string{
		"counter.pupper":      counter,
		"pages/about.pupper":  "template\n  p about\nstyle\n  p { margin: 0 }",
		"broken.pupper":       "component\n  template\n    p",
		"notes.txt":           "ignored",
		".hidden/skip.pupper": "template\n  p",
	})

	report, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(report.Files) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(report.Files))
	}
	if failed := report.Failed(); len(failed) != 1 || failed[0].Source != filepath.Join(src, "broken.pupper") {
		t.Errorf("failed = %+v", failed)
	}

	out, err := os.ReadFile(b.OutputPath(filepath.Join(src, "pages", "about.pupper")))
	if err != nil {
		t.Fatalf("Expected module output: %v", err)
	}
	if !strings.Contains(string(out), "export default defineComponent(") {
		t.Errorf("unexpected module:\n%s", out)
	}

	css, err := os.ReadFile(report.StylesPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(css) != "button { color: red }\np { margin: 0 }\n" {
		t.Errorf("styles = %q", css)
	}

	again, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n := again.Cached(); n != 2 {
		t.Errorf("Expected 2 cached files on rebuild, got %d", n)
	}
}

func TestBuild_Canceled(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{"a.pupper": counter})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Build(ctx); err != context.Canceled {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestCompileFile_CacheInvalidation(t *testing.T) {
	b, src := newTestBuilder(t, map[string]string{"a.pupper": counter})
	path := filepath.Join(src, "a.pupper")

	if _, cached, err := b.CompileFile(path); err != nil || cached {
		t.Fatalf("first compile: cached = %v, err = %v", cached, err)
	}
	if _, cached, _ := b.CompileFile(path); !cached {
		t.Error("Expected a cache hit for an unchanged file")
	}

	writeSources(t, src, map[string]string{"a.pupper": counter + "\n"})
	if _, cached, _ := b.CompileFile(path); cached {
		t.Error("Expected a miss after the source changed")
	}
}

func TestRender(t *testing.T) {
	b, src := newTestBuilder(t, map[string]string{
		"app.pupper": strings.Join([]string{
			`import Badge(from="./parts/badge")`,
			`template`,
			`  div`,
			`    h1 {{ title }}`,
			`    Badge`,
			`data`,
			`  title: "Home"`,
		}, "\n"),
		"parts/badge.pupper": "template\n  b new",
		"plain.pupper":       "p= name",
	})

	html, err := b.Render(filepath.Join(src, "app.pupper"), nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if html != "<div><h1>Home</h1><b>new</b></div>" {
		t.Errorf("Render() = %q", html)
	}

	html, err = b.Render(filepath.Join(src, "app.pupper"), map[string]any{"title": "Props"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "<h1>Props</h1>") {
		t.Errorf("Render() with props = %q", html)
	}

	html, err = b.Render(filepath.Join(src, "plain.pupper"), map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if html != "<p>Ada</p>" {
		t.Errorf("Render(plain) = %q", html)
	}
}

func TestRender_ImportCycle(t *testing.T) {
	b, src := newTestBuilder(t, map[string]string{
		"a.pupper": "import B(from=\"./b\")\ntemplate\n  B",
		"b.pupper": "import A(from=\"./a\")\ntemplate\n  A",
	})
	_, err := b.Render(filepath.Join(src, "a.pupper"), nil)
	if err == nil || !strings.Contains(err.Error(), "import cycle") {
		t.Errorf("Render() error = %v, want import cycle", err)
	}
}

func TestResolveImport(t *testing.T) {
	tests := []struct {
		from, imp, want string
	}{
		{"src/app.pupper", "./badge.pupper", "src/badge.pupper"},
		{"src/app.pupper", "./parts/badge", "src/parts/badge.pupper"},
		{"src/pages/a.pupper", "../b", "src/b.pupper"},
		{"src/app.pupper", "/abs/c.pupper", "/abs/c.pupper"},
	}
	for _, tt := range tests {
		got := ResolveImport(filepath.FromSlash(tt.from), tt.imp)
		if got != filepath.FromSlash(tt.want) {
			t.Errorf("ResolveImport(%q, %q) = %q, want %q", tt.from, tt.imp, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	b := New(Options{SrcDir: "src", OutDir: "dist"})
	if got := b.OutputPath(filepath.Join("src", "pages", "a.pupper")); got != filepath.Join("dist", "pages", "a.js") {
		t.Errorf("OutputPath() = %q", got)
	}
}

func TestRenderModule(t *testing.T) {
	b, src := newTestBuilder(t, map[string]string{"a.pupper": counter})
	art, _, err := b.CompileFile(filepath.Join(src, "a.pupper"))
	if err != nil {
		t.Fatal(err)
	}
	html, err := RenderModule(art.Code, map[string]any{"count": 7}, nil)
	if err != nil {
		t.Fatalf("RenderModule() error = %v", err)
	}
	if html != "<button>7</button>" {
		t.Errorf("RenderModule() = %q", html)
	}
}
