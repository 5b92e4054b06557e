// Package docgen renders equipment transfer acts to files in the acts directory.
package docgen

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"regexp"
	"strings"
	"time"

	"inventory-assistant-be/pkg/inventory"
)

var ErrDocumentGeneration = errors.New("act document generation failed")

//go:embed templates/act.html.tmpl
var templateFS embed.FS

var actTemplate = template.Must(template.New("act.html.tmpl").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	ParseFS(templateFS, "templates/act.html.tmpl"))

// ActSpec is everything printed on one act: equipment handed over by one
// previous owner.
type ActSpec struct {
	OldEmployee     string
	NewEmployee     string
	NewEmployeeDept string
	Branch          string
	Location        string
	DBName          string
	Items           []inventory.Equipment
}

// Document is a generated file. It exists on disk when returned without error.
type Document struct {
	Path     string
	Filename string
}

type Generator struct {
	dir string
	now func() time.Time
}

func NewGenerator(dir string) *Generator {
	return &Generator{dir: dir, now: time.Now}
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\-]+`)

// SafeName turns a person's name into a filename fragment.
func SafeName(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "unknown"
	}
	if r := []rune(name); len(r) > 40 {
		name = string(r[:40])
	}
	return name
}

func (g *Generator) Generate(ctx context.Context, spec ActSpec) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if len(spec.Items) == 0 {
		return Document{}, fmt.Errorf("%w: no equipment for %s", ErrDocumentGeneration, spec.OldEmployee)
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrDocumentGeneration, err)
	}

	now := g.now()
	var buf bytes.Buffer
	err := actTemplate.Execute(&buf, struct {
		ActSpec
		Number string
		Date   string
	}{spec, now.Format("20060102-150405"), now.Format("02.01.2006")})
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrDocumentGeneration, err)
	}

	filename := fmt.Sprintf("act_%s_to_%s_%s.html", SafeName(spec.OldEmployee), SafeName(spec.NewEmployee), now.Format("20060102_150405"))
	f, err := os.CreateTemp(g.dir, strings.TrimSuffix(filename, ".html")+"_*.html")
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrDocumentGeneration, err)
	}
	path := f.Name()
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(path)
		return Document{}, fmt.Errorf("%w: %v", ErrDocumentGeneration, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return Document{}, fmt.Errorf("%w: %v", ErrDocumentGeneration, err)
	}
	return Document{Path: path, Filename: filename}, nil
}
