package site

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Page is the model for index.html.
type Page struct {
	Sections []Section
	Hero     Hero
	About    About
	Services []Service
	Pricing  PricingView
	Version  string
}

// NewPage assembles the full page around a pricing view.
func NewPage(pv PricingView, version string) Page {
	return Page{
		Sections: Sections(),
		Hero:     HomeContent(),
		About:    AboutContent(),
		Services: ServicesContent(),
		Pricing:  pv,
		Version:  version,
	}
}

// Renderer executes the page templates. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses every *.html template in fsys once.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	tmpl, err := template.New("").Funcs(FuncMap()).ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if tmpl.Lookup("index.html") == nil {
		return nil, fmt.Errorf("parse templates: index.html not found")
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the page. Output is buffered so a failing template never
// leaves a half-written response.
func (r *Renderer) Render(w io.Writer, page Page) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "index.html", page); err != nil {
		return fmt.Errorf("render index.html: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// FuncMap returns the template helpers.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"title":        Title,
		"featureLabel": FeatureLabel,
	}
}

// Title capitalises every word.
func Title(s string) string {
	return cases.Title(language.English).String(s)
}

// FeatureLabel turns a feature id into its display label: the first hyphen
// becomes a space and each word is capitalised.
func FeatureLabel(id string) string {
	return Title(strings.Replace(id, "-", " ", 1))
}
