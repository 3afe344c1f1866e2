// Package notify renders the membership emails with the Liquid template
// language and dispatches them through an esp.Sender.
package notify

import (
	"embed"
	"fmt"
	"html"
	"log"
	"sync"

	"github.com/osteele/liquid"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names.
const (
	TemplateCustomer = "customer"
	TemplateAdmin    = "admin"
)

// TemplateService handles Liquid template rendering with caching
type TemplateService struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates a new template service with custom filters
func NewTemplateService() *TemplateService {
	ts := &TemplateService{engine: liquid.NewEngine()}
	ts.registerCustomFilters()
	return ts
}

func (ts *TemplateService) registerCustomFilters() {
	// Default value filter: {{ gift_card_pin | default: "N/A" }}
	ts.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// HTML escape (safety): {{ user_input | escape }}
	ts.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
}

// RenderString processes a template with the given context. A non-empty
// cacheKey keeps the parsed template for later renders.
func (ts *TemplateService) RenderString(cacheKey, templateStr string, ctx map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := ts.cache.Load(cacheKey); ok {
			return render(cached.(*liquid.Template), ctx)
		}
	}

	tpl, err := ts.engine.ParseString(templateStr)
	if err != nil {
		log.Printf("[TemplateService] Parse error: %v", err)
		return "", err
	}
	if cacheKey != "" {
		ts.cache.Store(cacheKey, tpl)
	}
	return render(tpl, ctx)
}

// Render renders one of the embedded templates by name.
func (ts *TemplateService) Render(name string, ctx map[string]interface{}) (string, error) {
	if cached, ok := ts.cache.Load(name); ok {
		return render(cached.(*liquid.Template), ctx)
	}
	src, err := templateFS.ReadFile("templates/" + name + ".html")
	if err != nil {
		return "", fmt.Errorf("unknown template %q: %w", name, err)
	}
	return ts.RenderString(name, string(src), ctx)
}

func render(tpl *liquid.Template, ctx map[string]interface{}) (string, error) {
	out, err := tpl.RenderString(ctx)
	if err != nil {
		log.Printf("[TemplateService] Render error: %v", err)
		return "", err
	}
	return out, nil
}
