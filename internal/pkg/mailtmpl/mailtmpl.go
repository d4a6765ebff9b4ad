// Package mailtmpl renders the plain-text emails sent by the service.
// Each template defines a "subject" and a "body" block.
package mailtmpl

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var defaults embed.FS

// Template kinds. The kind is also the file name without the .tmpl suffix.
const (
	KindOTP   = "otp"
	KindReset = "reset_password"
)

var kinds = []string{KindOTP, KindReset}

// OTPData feeds the otp template.
type OTPData struct {
	AppName          string
	Name             string
	Code             string
	ExpiresInMinutes int
}

// ResetData feeds the reset_password template. An empty Name selects the generic greeting.
type ResetData struct {
	AppName string
	Name    string
	Link    string
}

// Source fetches template overrides by key.
type Source interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Set holds one parsed template per kind.
type Set struct {
	tmpls map[string]*template.Template
}

// Default returns the embedded templates.
func Default() *Set {
	s := &Set{tmpls: make(map[string]*template.Template, len(kinds))}
	for _, kind := range kinds {
		b, err := defaults.ReadFile("templates/" + kind + ".tmpl")
		if err != nil {
			panic("mailtmpl: missing embedded template " + kind)
		}
		s.tmpls[kind] = template.Must(template.New(kind).Parse(string(b)))
	}
	return s
}

// Load starts from the embedded templates and replaces each kind found under
// prefix in src. A missing override keeps the default; an override that does
// not parse is an error, so a broken deploy fails at startup.
func Load(ctx context.Context, src Source, prefix string, log *slog.Logger) (*Set, error) {
	s := Default()
	for _, kind := range kinds {
		key := prefix + kind + ".tmpl"
		rc, err := src.Download(ctx, key)
		if err != nil {
			log.Info("using embedded email template", "kind", kind, "key", key, "err", err)
			continue
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", key, err)
		}
		t, err := template.New(kind).Parse(string(b))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", key, err)
		}
		if t.Lookup("subject") == nil || t.Lookup("body") == nil {
			return nil, fmt.Errorf("template %s must define subject and body", key)
		}
		s.tmpls[kind] = t
		log.Info("loaded email template override", "kind", kind, "key", key)
	}
	return s, nil
}

// Render executes the subject and body blocks of kind.
func (s *Set) Render(kind string, data any) (subject, body string, err error) {
	t, ok := s.tmpls[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", kind)
	}
	var sb, bb bytes.Buffer
	if err := t.ExecuteTemplate(&sb, "subject", data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := t.ExecuteTemplate(&bb, "body", data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", kind, err)
	}
	return strings.TrimSpace(sb.String()), bb.String(), nil
}
