package mailer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"os"
	"sort"
	texttemplate "text/template"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/punchamoorthee/payflow/internal/domain"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Template is one entry of the registry document.
type Template struct {
	ID       string   `yaml:"id"`
	Subject  string   `yaml:"subject"`
	HTML     string   `yaml:"html"`
	Text     string   `yaml:"text"`
	Required []string `yaml:"required"`
	Optional []string `yaml:"optional"`
}

type registryDoc struct {
	Templates []Template `yaml:"templates"`
}

// Rendered is the output of a template: subject plus both bodies.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type compiled struct {
	def     Template
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// Registry is the fixed set of named templates, compiled once at startup.
type Registry struct {
	templates map[string]*compiled
	now       func() time.Time
}

// DefaultRegistry compiles the templates embedded in the binary.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(bytes.NewReader(defaultTemplates))
}

// LoadRegistryFile compiles a registry from a YAML file on disk.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open templates: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// LoadRegistry parses and compiles a registry document.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var doc registryDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}

	reg := &Registry{templates: make(map[string]*compiled), now: time.Now}
	for _, t := range doc.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template without id")
		}
		if _, dup := reg.templates[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.ID)
		}
		c, err := reg.compile(t)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.ID, err)
		}
		reg.templates[t.ID] = c
	}
	return reg, nil
}

func (r *Registry) funcs() map[string]any {
	return map[string]any{
		"money": formatMoney,
		"now":   func() string { return r.now().Format("2006-01-02 15:04:05") },
	}
}

func (r *Registry) compile(t Template) (*compiled, error) {
	subject, err := r.parseText(t.ID+".subject", t.Subject)
	if err != nil {
		return nil, err
	}
	text, err := r.parseText(t.ID+".text", t.Text)
	if err != nil {
		return nil, err
	}
	html, err := htmltemplate.New(t.ID + ".html").Funcs(r.funcs()).Option("missingkey=error").Parse(t.HTML)
	if err != nil {
		return nil, err
	}
	return &compiled{def: t, subject: subject, text: text, html: html}, nil
}

func (r *Registry) parseText(name, src string) (*texttemplate.Template, error) {
	return texttemplate.New(name).Funcs(r.funcs()).Option("missingkey=error").Parse(src)
}

// IDs lists the registered template ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render substitutes data into the named template. A non-empty subject
// overrides the template default and is rendered with the same data.
func (r *Registry) Render(id string, data map[string]any, subject string) (Rendered, error) {
	c, ok := r.templates[id]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, id)
	}

	vars := make(map[string]any, len(data)+len(c.def.Optional))
	for k, v := range data {
		vars[k] = v
	}
	for _, field := range c.def.Required {
		if v, ok := vars[field]; !ok || v == nil || v == "" {
			return Rendered{}, fmt.Errorf("%w: template %s requires %q", domain.ErrValidation, id, field)
		}
	}
	for _, field := range c.def.Optional {
		if v, ok := vars[field]; !ok || v == nil {
			vars[field] = ""
		}
	}

	subjectTmpl := c.subject
	if subject != "" {
		t, err := r.parseText(id+".subject_override", subject)
		if err != nil {
			return Rendered{}, fmt.Errorf("%w: subject: %v", domain.ErrValidation, err)
		}
		subjectTmpl = t
	}

	var out Rendered
	var buf bytes.Buffer
	if err := subjectTmpl.Execute(&buf, vars); err != nil {
		return Rendered{}, fmt.Errorf("%w: render subject: %v", domain.ErrValidation, err)
	}
	out.Subject = buf.String()

	buf.Reset()
	if err := c.text.Execute(&buf, vars); err != nil {
		return Rendered{}, fmt.Errorf("%w: render text: %v", domain.ErrValidation, err)
	}
	out.Text = buf.String()

	buf.Reset()
	if err := c.html.Execute(&buf, vars); err != nil {
		return Rendered{}, fmt.Errorf("%w: render html: %v", domain.ErrValidation, err)
	}
	out.HTML = buf.String()
	return out, nil
}

// formatMoney renders an amount as dollars with two decimals. Unparseable
// values are printed as-is.
func formatMoney(v any) string {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case json.Number:
		parsed, err := decimal.NewFromString(x.String())
		if err != nil {
			return x.String()
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(x)
		if err != nil {
			return x
		}
		d = parsed
	default:
		return fmt.Sprint(v)
	}
	return "$" + d.StringFixed(2)
}
