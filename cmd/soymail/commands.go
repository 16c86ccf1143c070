package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/robfig/soymail/locale"
	"github.com/robfig/soymail/mail"
	"github.com/robfig/soymail/parse"
	"github.com/robfig/soymail/store"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		dataFile string
		output   string
		outbox   string
		to       string
		subject  bool
	)
	var cmd = &cobra.Command{
		Use:   "render <document-type>",
		Short: "Render a document to stdout, a file or a local outbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload, err = readPayload(dataFile)
			if err != nil {
				return err
			}
			doc, err := a.gen.Generate(cmd.Context(), args[0], payload, a.locale)
			if err != nil {
				return err
			}
			if outbox != "" {
				return mail.NewDevSender(outbox).Send(cmd.Context(), mail.Message{
					To:      to,
					Subject: doc.Subject,
					HTML:    doc.HTML,
					Tag:     doc.Tag,
				})
			}
			if subject {
				fmt.Fprintln(cmd.OutOrStdout(), doc.Subject)
			}
			if output != "" {
				return os.WriteFile(output, []byte(doc.HTML), 0644)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), doc.HTML)
			return err
		},
	}
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "payload file (.yaml, .yml or .json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the HTML to this file")
	cmd.Flags().StringVar(&outbox, "outbox", "", "save the message into this directory instead of printing it")
	cmd.Flags().StringVar(&to, "to", "dev@example.com", "recipient recorded in the outbox")
	cmd.Flags().BoolVar(&subject, "subject", false, "print the subject line before the HTML")
	return cmd
}

func newSendCmd(a *app) *cobra.Command {
	var (
		dataFile string
		to       string
	)
	var cmd = &cobra.Command{
		Use:   "send <document-type>",
		Short: "Render a document and deliver it through Postmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sender, err = mail.NewPostmarkSender(mail.PostmarkConfig{
				ServerToken:  a.cfg.Postmark.ServerToken,
				AccountToken: a.cfg.Postmark.AccountToken,
				From:         a.cfg.Postmark.From,
				ReplyTo:      a.cfg.Postmark.ReplyTo,
			})
			if err != nil {
				return err
			}
			payload, err := readPayload(dataFile)
			if err != nil {
				return err
			}
			doc, err := a.gen.Generate(cmd.Context(), args[0], payload, a.locale)
			if err != nil {
				return err
			}
			return sender.Send(cmd.Context(), mail.Message{
				To:      to,
				Subject: doc.Subject,
				HTML:    doc.HTML,
				Tag:     doc.Tag,
			})
		},
	}
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "payload file (.yaml, .yml or .json)")
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newCSSCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "css",
		Short: "Print the design-system stylesheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var css, err = a.gen.GenerateCSS()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), css)
			return err
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every template and partial for structural problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var results, err = a.gen.ValidateTemplates(cmd.Context())
			if err != nil {
				return err
			}
			var names = make([]string, 0, len(results))
			for name := range results {
				names = append(names, name)
			}
			sort.Strings(names)
			var out = cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%s:\n", name)
				for _, issue := range results[name].Issues {
					fmt.Fprintf(out, "  %s\n", issue)
				}
			}
			if len(names) > 0 {
				return fmt.Errorf("%d template(s) failed validation", len(names))
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}

func newHelpersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "helpers",
		Short: "List the helpers available to templates",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range a.gen.RegisteredHelpers() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the document types and their templates",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, dt := range a.gen.DocumentTypes() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", dt.Name, dt.Template)
			}
		},
	}
}

// readPayload decodes a YAML or JSON payload file.  An empty path yields an
// empty payload.
func readPayload(path string) (map[string]interface{}, error) {
	var payload = map[string]interface{}{}
	if path == "" {
		return payload, nil
	}
	var raw, err = os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var dec = json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		err = dec.Decode(&payload)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &payload)
	default:
		return nil, fmt.Errorf("unsupported payload format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return payload, nil
}

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Write a PO template of the messages used by templates and subjects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ctx = cmd.Context()
			var st = a.gen.Store()
			var templates, partials, err = st.List(ctx)
			if err != nil {
				return err
			}
			var e = locale.NewExtractor()
			var add = func(name, text string) error {
				var tree, err = parse.Template(name, text)
				if err != nil {
					return err
				}
				e.Add(tree)
				return nil
			}
			for _, name := range templates {
				var text, err = st.Load(ctx, name)
				if err != nil {
					return err
				}
				if err := add(name, text); err != nil {
					return err
				}
			}
			for _, name := range partials {
				var text, err = st.LoadPartial(ctx, name)
				if err != nil {
					return err
				}
				if err := add(store.PartialNamespace+"/"+name, text); err != nil {
					return err
				}
			}
			for _, dt := range a.gen.DocumentTypes() {
				e.AddMessage(locale.ContextSubject, dt.Subject, "document type "+dt.Name)
			}
			e.Write(cmd.OutOrStdout())
			return nil
		},
	}
}
