package geminiserver

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// ErrNoTemplates is returned by Render when no template root is configured.
var ErrNoTemplates = errors.New("geminiserver: no template root configured")

// Templates is the set of templates parsed from a template root. Template
// names are slash-separated paths relative to the root, e.g. "hi.gmi" or
// "partials/footer.gmi". Every template can invoke every other one.
type Templates struct {
	root string
	set  *template.Template
}

// LoadTemplates parses every regular file under root. An empty root returns
// nil, which Render treats as disabled.
func LoadTemplates(root string, funcs template.FuncMap) (*Templates, error) {
	if root == "" {
		return nil, nil
	}

	set := template.New("").Funcs(defaultFuncs()).Funcs(funcs)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := set.New(filepath.ToSlash(rel)).Parse(string(text)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("geminiserver: load templates from %s: %w", root, err)
	}

	return &Templates{root: root, set: set}, nil
}

// Render executes the named template.
func (t *Templates) Render(name string, data any) ([]byte, error) {
	if t == nil {
		return nil, ErrNoTemplates
	}
	tmpl := t.set.Lookup(name)
	if tmpl == nil {
		return nil, fmt.Errorf("geminiserver: template %q not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("geminiserver: render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Names returns the parsed template names.
func (t *Templates) Names() []string {
	if t == nil {
		return nil
	}
	var names []string
	for _, tmpl := range t.set.Templates() {
		if tmpl.Name() != "" {
			names = append(names, tmpl.Name())
		}
	}
	return names
}

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		// oneline keeps user-supplied text from starting a new gemtext line.
		"oneline": func(s string) string {
			return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
		},
	}
}
