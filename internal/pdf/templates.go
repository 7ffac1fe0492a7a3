package pdf

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/geocoder89/resumeforge/internal/domain/resume"
)

//go:embed templates/*.html
var templateFS embed.FS

var ErrUnknownTemplate = errors.New("pdf: unknown template")

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type view struct {
	Title     string
	Name      string
	Email     string
	Summary   string
	Work      []resume.WorkExperience
	Education []resume.Education
	Skills    []string
}

// Templates lists the template names accepted by RenderHTML.
func Templates() []string {
	var names []string
	for _, t := range templates.Templates() {
		names = append(names, strings.TrimSuffix(t.Name(), ".html"))
	}
	return names
}

func HasTemplate(name string) bool {
	return templates.Lookup(name+".html") != nil
}

// RenderHTML fills the named template. All resume fields are HTML-escaped.
func RenderHTML(name string, res resume.Resume, email string) ([]byte, error) {
	t := templates.Lookup(name + ".html")
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	var buf bytes.Buffer
	err := t.Execute(&buf, view{
		Title:     res.Title,
		Name:      res.Title,
		Email:     email,
		Summary:   res.ProfessionalSummary,
		Work:      res.WorkExperience,
		Education: res.Education,
		Skills:    res.Skills,
	})
	if err != nil {
		return nil, fmt.Errorf("pdf: render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename derives an attachment name from a resume title.
func Filename(title string) string {
	name := unsafeFilename.ReplaceAllString(strings.TrimSpace(title), "_")
	name = strings.Trim(name, "_.")
	if name == "" {
		name = "resume"
	}
	return name + ".pdf"
}
