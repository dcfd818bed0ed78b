package geminiserver

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"text/template"
)

func TestLoadTemplates(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "page.gmi"), `# {{.Title | upper}}
{{template "partials/footer.gmi" .}}`)
	mustWrite(t, filepath.Join(root, "partials", "footer.gmi"), `=> / {{oneline .Footer}}`)

	tmpl, err := LoadTemplates(root, template.FuncMap{"shout": strings.ToUpper})
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}

	names := tmpl.Names()
	sort.Strings(names)
	if strings.Join(names, ",") != "page.gmi,partials/footer.gmi" {
		t.Errorf("Names() = %v", names)
	}

	out, err := tmpl.Render("page.gmi", map[string]string{"Title": "home", "Footer": "back\nhome"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if want := "# HOME\n=> / back home"; string(out) != want {
		t.Errorf("Render() = %q, want %q", out, want)
	}
}

func TestLoadTemplates_Errors(t *testing.T) {
	if tmpl, err := LoadTemplates("", nil); tmpl != nil || err != nil {
		t.Errorf("LoadTemplates(\"\") = %v, %v; want nil, nil", tmpl, err)
	}

	if _, err := LoadTemplates(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("LoadTemplates() should fail for a missing root")
	}

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "broken.gmi"), "{{.Title")
	if _, err := LoadTemplates(root, nil); err == nil {
		t.Error("LoadTemplates() should fail on a parse error")
	}
}

func TestTemplates_RenderExecError(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "call.gmi"), `{{template "nope.gmi"}}`)

	tmpl, err := LoadTemplates(root, nil)
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	if _, err := tmpl.Render("call.gmi", nil); err == nil {
		t.Error("Render() should fail when a template calls an unknown one")
	}
}
