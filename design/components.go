package design

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/soymail/escape"
	"github.com/robfig/soymail/locale"
)

// Component kinds accepted by GenerateComponentFragment.
const (
	KindButton = "button"
	KindBadge  = "badge"
)

// statusTones maps order statuses to badge colors.
var statusTones = map[string]string{
	"pending":          "warning",
	"processing":       "warning",
	"on_hold":          "warning",
	"shipped":          "success",
	"out_for_delivery": "success",
	"delivered":        "success",
	"cancelled":        "danger",
	"returned":         "danger",
	"failed":           "danger",
}

var buttonVariants = map[string]string{
	"primary":   "primary",
	"secondary": "secondary",
	"danger":    "danger",
}

// GenerateComponentFragment returns self-contained, inline-styled markup for a
// component:
//
//	button: label (or content), href, variant (primary, secondary, danger)
//	badge:  status, locale, label (overrides the localized status label)
//
// It never fails.  Unknown kinds and invalid parameters produce a plain,
// escaped fallback element, and the problem is logged.
func (i *Injector) GenerateComponentFragment(kind string, params map[string]string) (html string) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Warn().Str("kind", kind).Msgf("component failed: %v", r)
			html = fallback(params)
		}
	}()
	var err error
	switch kind {
	case KindButton:
		html, err = i.button(params)
	case KindBadge:
		html, err = i.badge(params)
	default:
		err = fmt.Errorf("unknown component kind %q", kind)
	}
	if err != nil {
		Logger.Warn().Str("kind", kind).Err(err).Msg("component fallback")
		return fallback(params)
	}
	return html
}

func (i *Injector) button(params map[string]string) (string, error) {
	var label = firstOf(params, "label", "content")
	if label == "" {
		return "", fmt.Errorf("button has no label")
	}
	var href, err = safeURL(params["href"])
	if err != nil {
		return "", err
	}
	var variant, ok = buttonVariants[params["variant"]]
	if !ok {
		variant = "primary"
	}
	var bg = i.color(variant)
	return fmt.Sprintf(`<table role="presentation" border="0" cellpadding="0" cellspacing="0" class="btn btn-%s">`+
		`<tr><td align="center" bgcolor="%s" style="border-radius:%s;background-color:%s;">`+
		`<a href="%s" target="_blank" style="display:inline-block;padding:%s %s;color:%s;font-weight:%s;text-decoration:none;">%s</a>`+
		`</td></tr></table>`,
		variant,
		escape.EscapeAttribute(bg),
		escape.EscapeAttribute(i.token("radii", "md")), escape.EscapeAttribute(bg),
		escape.EscapeAttribute(href),
		escape.EscapeAttribute(i.token("spacing", "sm")), escape.EscapeAttribute(i.token("spacing", "lg")),
		escape.EscapeAttribute(i.color("on-primary")),
		escape.EscapeAttribute(i.token("typography", "font-weight-bold")),
		escape.EscapeContent(label),
	), nil
}

func (i *Injector) badge(params map[string]string) (string, error) {
	var status = params["status"]
	var label = params["label"]
	if label == "" {
		if status == "" {
			return "", fmt.Errorf("badge has no status")
		}
		if i.catalog != nil {
			label = i.catalog.StatusLabel(status, params["locale"])
		} else {
			label = locale.Humanize(status)
		}
	}
	var tone, ok = statusTones[strings.ToLower(status)]
	if !ok {
		tone = "info"
	}
	var class = "badge badge-" + tone
	if status != "" {
		class += " badge-" + cssIdent(status)
	}
	return fmt.Sprintf(`<span class="%s" style="display:inline-block;padding:%s %s;border-radius:%s;background-color:%s;color:%s;font-size:%s;font-weight:%s;">%s</span>`,
		escape.EscapeAttribute(class),
		escape.EscapeAttribute(i.token("spacing", "xs")), escape.EscapeAttribute(i.token("spacing", "sm")),
		escape.EscapeAttribute(i.token("radii", "pill")),
		escape.EscapeAttribute(i.color(tone)),
		escape.EscapeAttribute(i.color("on-primary")),
		escape.EscapeAttribute(i.token("typography", "font-size-small")),
		escape.EscapeAttribute(i.token("typography", "font-weight-bold")),
		escape.EscapeContent(label),
	), nil
}

func (i *Injector) color(key string) string {
	return i.token("colors", key)
}

// token returns a token value, or the placeholder itself so that the gap is
// visible in review.
func (i *Injector) token(category, key string) string {
	if value, ok := i.tokens.Lookup(category, key); ok {
		return value
	}
	return openToken + category + "." + key + closeToken
}

// fallback is the minimal element shown in place of a failed component.
func fallback(params map[string]string) string {
	return "<span>" + escape.EscapeContent(firstOf(params, "label", "content", "status")) + "</span>"
}

func firstOf(params map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := params[key]; v != "" {
			return v
		}
	}
	return ""
}

// safeURL accepts absolute http, https and mailto URLs.
func safeURL(raw string) (string, error) {
	var u, err = url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return "", fmt.Errorf("url %q has no host", raw)
		}
	case "mailto":
	default:
		return "", fmt.Errorf("url %q: scheme not allowed", raw)
	}
	return u.String(), nil
}

// cssIdent reduces s to characters valid in a class name.
func cssIdent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9', r == '-', r == '_':
			return r
		case 'A' <= r && r <= 'Z':
			return r + 'a' - 'A'
		}
		return -1
	}, s)
}
