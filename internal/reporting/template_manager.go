package reporting

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

const TextReportTemplate = "report.txt.tmpl"

const defaultTextReport = `VaultLynx security report
Source:	{{.Source}}
Report ID:	{{.ID}}
Generated:	{{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}
Security score:	{{.Score}}/100 ({{.ScoreLabel}})
{{- with .LeakCheckError}}
Warning:	{{.}}
{{- end}}

Categories
  Strength:	{{.Categories.Strength}}/100
  Uniqueness:	{{.Categories.Uniqueness}}/100
  Breach exposure:	{{.Categories.Breach}}/100
  Two-factor coverage:	{{.Categories.TwoFactor}}/100

Summary
  Items analyzed:	{{num .Summary.TotalItems}}
  Invalid records:	{{num .Summary.InvalidItems}}
  Skipped records:	{{num .Summary.SkippedItems}}
  Leaked:	{{num .Summary.PasswordStats.LeakedCount}}
  Duplicates:	{{num .Summary.PasswordStats.DuplicateCount}}
  With TOTP:	{{num .Summary.PasswordStats.WithTOTPCount}}
  Average strength:	{{decimal .Summary.PasswordStats.AverageStrengthScore}}
  Average length:	{{decimal .Summary.PasswordStats.AverageLength}}

Risk levels (after breach check)
{{- range .RiskDistribution}}
  {{.Level}}:	{{num .Count}}
{{- end}}

Password age
{{- range .AgeDistribution}}
  {{.Bucket}}:	{{num .Count}}
{{- end}}

Top domains
{{- range .TopDomains}}
  {{.Domain}}:	{{num .Count}}
{{- else}}
  none
{{- end}}

Recommendations
{{- range .Recommendations}}
  [{{upper .Priority}}] {{.Title}}:	{{num .AffectedItems}} item(s)
      {{.Description}}
{{- else}}
  No action needed.
{{- end}}
{{- if .Items}}

Items
  NAME	DOMAIN	RISK	SCORE	LEAKS	DUPLICATE	AGE
{{- range .Items}}
  {{.DisplayName}}	{{.BaseDomain}}	{{.RiskLevel}}	{{score .PasswordStrength}}	{{num .LeakCount}}	{{yesno .IsDuplicate}}	{{age .PasswordAgeDays}}
{{- end}}
{{- end}}
`

type TemplateManager struct {
	templates map[string]*template.Template
	funcs     template.FuncMap
	mu        sync.RWMutex
}

func NewTemplateManager() *TemplateManager {
	tm := &TemplateManager{
		templates: make(map[string]*template.Template),
		funcs:     defaultFuncs(language.English),
	}
	if err := tm.Register(TextReportTemplate, defaultTextReport, nil); err != nil {
		panic(err)
	}
	return tm
}

func defaultFuncs(tag language.Tag) template.FuncMap {
	p := message.NewPrinter(tag)
	return template.FuncMap{
		"num":     func(n int) string { return p.Sprintf("%d", n) },
		"decimal": func(f float64) string { return p.Sprintf("%.2f", f) },
		"upper":   strings.ToUpper,
		"yesno": func(b bool) string {
			if b {
				return "yes"
			}
			return "no"
		},
		"age": func(days int) string {
			if days < 0 {
				return "unknown"
			}
			return p.Sprintf("%dd", days)
		},
		"score": func(ps *models.PasswordStrength) string {
			if ps == nil {
				return "-"
			}
			return fmt.Sprintf("%d/4", ps.Score)
		},
	}
}

func (tm *TemplateManager) Register(name, tpl string, funcs template.FuncMap) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t := template.New(name).Funcs(tm.funcs)
	if funcs != nil {
		t = t.Funcs(funcs)
	}
	parsed, err := t.Parse(tpl)
	if err != nil {
		return fmt.Errorf("parse %q: %w", name, err)
	}
	tm.templates[name] = parsed
	return nil
}

// LoadDir registers every *.tmpl file under dir by base name, replacing built-ins
// of the same name.
func (tm *TemplateManager) LoadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".tmpl" {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %q: %w", path, err)
		}
		return tm.Register(d.Name(), string(b), nil)
	})
}

func (tm *TemplateManager) Get(name string) (*template.Template, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	t, ok := tm.templates[name]
	return t, ok
}
