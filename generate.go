package soymail

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/soymail/errortypes"
	"github.com/robfig/soymail/locale"
	"github.com/robfig/soymail/render"
)

// Stage is a step of document generation.
type Stage string

const (
	StageStart          Stage = "START"
	StageTemplateLoaded Stage = "TEMPLATE_LOADED"
	StageCompiled       Stage = "COMPILED"
	StageExecuted       Stage = "EXECUTED"
	StageCSSInjected    Stage = "CSS_INJECTED"
	StageDone           Stage = "DONE"
	StageFailed         Stage = "FAILED"
)

// Document is a generated email.
type Document struct {
	Type    string
	Locale  string
	Tag     string
	Subject string
	HTML    string
}

// Generate renders the named document type for payload in the given locale.
// An empty locale selects the default.  On failure the returned error is one
// of the errortypes and the document is nil.
func (g *Generator) Generate(ctx context.Context, docType string, payload interface{}, loc string) (doc *Document, err error) {
	if loc == "" {
		loc = g.locale
	}
	var (
		log   = Logger.With().Str("type", docType).Str("locale", loc).Logger()
		stage = StageStart
		start = time.Now()
	)
	var advance = func(next Stage) {
		log.Trace().Str("from", string(stage)).Str("to", string(next)).Msg("stage")
		stage = next
	}
	defer func() {
		if err != nil {
			var ev = log.Warn().Err(err).
				Str("stage", string(stage)).
				Str("kind", errortypes.Kind(err))
			if pos := errortypes.ToErrFilePos(err); pos != nil {
				ev = ev.Str("file", pos.File()).Int("line", pos.Line()).Int("col", pos.Col())
			}
			ev.Msg(string(StageFailed))
			doc = nil
			return
		}
		log.Debug().Dur("elapsed", time.Since(start)).Msg("generated")
	}()

	var dt, ok = g.DocumentType(docType)
	if !ok {
		return nil, &errortypes.TemplateNotFoundError{Name: docType, Path: "document types"}
	}

	text, err := g.store.Load(ctx, dt.Template)
	if err != nil {
		return nil, err
	}
	advance(StageTemplateLoaded)

	if g.policy != nil {
		if err := g.policy.Check(dt.Template, text); err != nil {
			return nil, err
		}
	}

	compiled, err := g.engine.Compile(ctx, dt.Template, text)
	if err != nil {
		return nil, err
	}
	advance(StageCompiled)

	html, err := compiled.Execute(ctx, render.Input{Data: payload, Locale: loc})
	if err != nil {
		return nil, err
	}
	subject, err := g.Subject(ctx, dt, payload, loc)
	if err != nil {
		return nil, err
	}
	advance(StageExecuted)

	html, err = g.injector.Inject(html)
	if err != nil {
		return nil, err
	}
	advance(StageCSSInjected)

	advance(StageDone)
	return &Document{
		Type:    dt.Name,
		Locale:  loc,
		Tag:     dt.Tag,
		Subject: subject,
		HTML:    html,
	}, nil
}

// Subject renders the subject line of dt.  The subject message is itself a
// template, executed without escaping; runs of whitespace are collapsed so
// that the result is a single line.
func (g *Generator) Subject(ctx context.Context, dt DocumentType, payload interface{}, loc string) (string, error) {
	var text = g.catalog.Text(loc, locale.ContextSubject, dt.Subject)
	var compiled, err = g.engine.Compile(ctx, "subject/"+dt.Name+"/"+loc, text)
	if err != nil {
		return "", err
	}
	subject, err := compiled.Execute(ctx, render.Input{Data: payload, Locale: loc, Mode: render.ModeText})
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(subject), " "), nil
}
