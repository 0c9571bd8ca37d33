package generator

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"text/template"

	apperrors "stackpilot/internal/errors"
)

//go:embed templates
var templateFS embed.FS

// templateFiles maps embedded template paths to their location inside a
// generated project. Pulumi.yaml is the only file with substitutions.
var templateFiles = []struct {
	src      string
	dst      string
	rendered bool
}{
	{"templates/Pulumi.yaml.tmpl", "Pulumi.yaml", true},
	{"templates/main.go.tmpl", "main.go", false},
	{"templates/www/index.html", filepath.Join("www", "index.html"), false},
}

// namePattern accepts lowercase identifiers safe for use as a filesystem path
// segment and as a Pulumi project name.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,39}$`)

// Generator materializes static-website projects from the fixed template.
// Generation is idempotent given the same name: the second attempt fails with
// an already-exists error.
type Generator struct {
	root string
}

// New creates a generator that writes projects under root
func New(root string) *Generator {
	return &Generator{root: root}
}

// ValidateName checks that name is usable as a project identifier
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return apperrors.NewInvalidArgumentError(
			fmt.Sprintf("invalid project name %q: must be lowercase letters, digits and hyphens, max 40 characters", name))
	}
	return nil
}

// Generate creates a new project directory from the template and returns its
// path. The tree is built in a temporary directory and renamed into place so a
// partial failure never leaves a directory that looks complete.
func (g *Generator) Generate(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	target := filepath.Join(g.root, name)
	if _, err := os.Stat(target); err == nil {
		return "", apperrors.NewAlreadyExistsError(fmt.Sprintf("project directory %s", target))
	} else if !os.IsNotExist(err) {
		return "", apperrors.NewIOError(fmt.Sprintf("failed to stat %s", target), err)
	}

	if err := os.MkdirAll(g.root, 0o755); err != nil {
		return "", apperrors.NewIOError("failed to create workspace directory", err)
	}

	tmp, err := os.MkdirTemp(g.root, "."+name+"-")
	if err != nil {
		return "", apperrors.NewIOError("failed to create staging directory", err)
	}

	if err := g.writeTemplate(tmp, name); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}

	if err := os.Rename(tmp, target); err != nil {
		os.RemoveAll(tmp)
		if os.IsExist(err) {
			return "", apperrors.NewAlreadyExistsError(fmt.Sprintf("project directory %s", target))
		}
		return "", apperrors.NewIOError(fmt.Sprintf("failed to move project into place at %s", target), err)
	}

	return target, nil
}

// writeTemplate renders every template file into dir
func (g *Generator) writeTemplate(dir, name string) error {
	data := struct{ Name string }{Name: name}

	for _, file := range templateFiles {
		raw, err := templateFS.ReadFile(file.src)
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("missing embedded template %s", file.src), err)
		}

		content := raw
		if file.rendered {
			tmpl, err := template.New(filepath.Base(file.src)).Parse(string(raw))
			if err != nil {
				return apperrors.NewInternalError(fmt.Sprintf("invalid template %s", file.src), err)
			}
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, data); err != nil {
				return apperrors.NewInternalError(fmt.Sprintf("failed to render template %s", file.src), err)
			}
			content = buf.Bytes()
		}

		dst := filepath.Join(dir, file.dst)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return apperrors.NewIOError(fmt.Sprintf("failed to create %s", filepath.Dir(dst)), err)
		}
		if err := os.WriteFile(dst, content, 0o644); err != nil {
			return apperrors.NewIOError(fmt.Sprintf("failed to write %s", dst), err)
		}
	}

	return nil
}
