/*
Package soymail generates localized, styled HTML email documents from
structured data.

A document is produced in four steps: its template is loaded from a store,
compiled, executed against the payload and locale, and finally has the
design-system stylesheet injected into it.

	START -> TEMPLATE_LOADED -> COMPILED -> EXECUTED -> CSS_INJECTED -> DONE

Any failure aborts the pipeline with a typed error from the errortypes
package; no partial document is returned.

Usage example

On startup:

	gen, err := soymail.New(
		soymail.WithDefaultLocale("en"),
		soymail.WithStrict(true),
	)

To render a document:

	doc, err := gen.Generate(ctx, "order_confirmation", map[string]interface{}{
		"customer": map[string]interface{}{"name": "Ana"},
		"order":    order,
	}, "vi")
	// doc.Subject, doc.HTML

Templates

Templates are named "category/name" and stored as category/name.hbs, with
partials under partials/.  The built-in document types use the templates
embedded in this package; WithSource or FromConfig select a directory or an
S3 bucket instead.  See the render package for the template syntax.

Templates include the stylesheet placeholder

	<!-- soymail:styles -->

in their head, and may reference design tokens directly as [[colors.primary]].

Advanced Usage

The sub-packages may be used directly: parse for the template syntax tree,
render for compilation and execution, design for the stylesheet, locale for
translations and formatting, and store for loading.
*/
package soymail
