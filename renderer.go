package torque

import (
	"bytes"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Renderer renders "text/html" templates. It is an optional convenience:
// nothing in the request path requires it, and an App works fine without
// ever constructing one.
type Renderer struct {
	logger *Logger

	root      string
	ext       string
	leftDelim string
	rightDelim string
	watched   bool

	template        *template.Template
	templateFuncMap template.FuncMap
	watcher         *fsnotify.Watcher
}

// RendererConfig configures a Renderer.
type RendererConfig struct {
	TemplateRoot string
	TemplateExt  string
	LeftDelim    string
	RightDelim   string
	Watch        bool
}

// NewRenderer returns a Renderer built from cfg, with zero-value fields
// defaulted to sane template settings.
func NewRenderer(cfg RendererConfig, logger *Logger) *Renderer {
	if cfg.TemplateRoot == "" {
		cfg.TemplateRoot = "templates"
	}
	if cfg.TemplateExt == "" {
		cfg.TemplateExt = ".html"
	}
	if cfg.LeftDelim == "" {
		cfg.LeftDelim = "{{"
	}
	if cfg.RightDelim == "" {
		cfg.RightDelim = "}}"
	}

	return &Renderer{
		logger:     logger,
		root:       cfg.TemplateRoot,
		ext:        cfg.TemplateExt,
		leftDelim:  cfg.LeftDelim,
		rightDelim: cfg.RightDelim,
		watched:    cfg.Watch,
		template:   template.New("template"),
		templateFuncMap: template.FuncMap{
			"strlen":  strlen,
			"strcat":  strcat,
			"substr":  substr,
			"timefmt": timefmt,
		},
	}
}

// SetTemplateFunc registers f under name in the template func map. Must be
// called before ParseTemplates.
func (r *Renderer) SetTemplateFunc(name string, f any) {
	r.templateFuncMap[name] = f
}

// ParseTemplates walks r.root and parses every file matching r.ext. If
// r.watched, it also starts a goroutine that re-parses on fsnotify change
// events.
func (r *Renderer) ParseTemplates() error {
	if _, err := os.Stat(r.root); err != nil && os.IsNotExist(err) {
		return nil
	}

	if r.watched {
		var err error
		if r.watcher, err = fsnotify.NewWatcher(); err != nil {
			return err
		}

		dirs, err := walkDirs(r.root)
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			if err := r.watcher.Add(dir); err != nil {
				return err
			}
		}

		go r.watchTemplates()
	}

	return r.parseTemplates()
}

// Render executes the named template against data.
func (r *Renderer) Render(w io.Writer, templateName string, data map[string]any) error {
	return r.template.ExecuteTemplate(w, templateName, data)
}

func (r *Renderer) parseTemplates() error {
	root := filepath.Clean(r.root)
	if _, err := os.Stat(root); err != nil && os.IsNotExist(err) {
		return nil
	}

	dirs, err := walkDirs(root)
	if err != nil {
		return err
	}

	var filenames []string
	for _, dir := range dirs {
		fns, err := filepath.Glob(filepath.Join(dir, "*"+r.ext))
		if err != nil {
			return err
		}
		filenames = append(filenames, fns...)
	}

	t := template.New("template")
	t.Funcs(r.templateFuncMap)
	t.Delims(r.leftDelim, r.rightDelim)

	for _, filename := range filenames {
		b, err := os.ReadFile(filename)
		if err != nil {
			return err
		}

		start := 0
		if root != "." {
			start = len(root) + 1
		}

		name := filepath.ToSlash(filename[start:])
		if _, err := t.New(name).Parse(string(b)); err != nil {
			return err
		}
	}

	r.template = t
	return nil
}

func (r *Renderer) watchTemplates() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if r.logger != nil {
				r.logger.Info("template change detected", "event", event.String())
			}

			if event.Op == fsnotify.Create {
				s := event.Name
				if filepath.Ext(s) != r.ext {
					r.watcher.Add(s)
				}
			}

			if err := r.parseTemplates(); err != nil && r.logger != nil {
				r.logger.Error("failed to reparse templates", "error", err)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			if r.logger != nil {
				r.logger.Error("template watcher error", "error", err)
			}
		}
	}
}

// walkDirs walks all subdirectories of root recursively, root included.
func walkDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

func strlen(s string) int { return len([]rune(s)) }

func strcat(s string, ss ...string) string {
	var b bytes.Buffer
	b.WriteString(s)
	for _, x := range ss {
		b.WriteString(x)
	}
	return b.String()
}

func substr(s string, i, j int) string {
	rs := []rune(s)
	return string(rs[i:j])
}

func timefmt(t time.Time, layout string) string { return t.Format(layout) }
