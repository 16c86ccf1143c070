package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robfig/soymail"
	"github.com/robfig/soymail/errortypes"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		dataFile string
		port     int
	)
	var cmd = &cobra.Command{
		Use:   "preview",
		Short: "Serve rendered documents over HTTP while editing templates",
		Long: `preview starts a development server.  GET /<document-type> renders the
document with the payload from --data; query parameters override top-level
payload keys and "locale" selects the locale.  With --templates the directory
is watched and edits show up on the next request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload, err = readPayload(dataFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if a.cfg.TemplateDir != "" {
				if err := a.gen.Watch(ctx, a.cfg.TemplateDir); err != nil {
					return err
				}
			}

			var srv = &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           previewHandler(a.gen, payload, a.locale),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdown)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on :%d...\n", port)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "payload file (.yaml, .yml or .json)")
	cmd.Flags().IntVar(&port, "port", 9812, "port on which to listen")
	return cmd
}

// previewHandler renders the document type named by the request path.  The
// root path lists the document types.
func previewHandler(gen *soymail.Generator, payload map[string]interface{}, defaultLocale string) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		var name = strings.Trim(req.URL.Path, "/")
		if name == "" {
			res.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(res, "<ul>\n")
			for _, dt := range gen.DocumentTypes() {
				fmt.Fprintf(res, "<li><a href=\"/%s\">%s</a></li>\n",
					html.EscapeString(dt.Name), html.EscapeString(dt.Name))
			}
			io.WriteString(res, "</ul>\n")
			return
		}

		var m = make(map[string]interface{}, len(payload))
		for k, v := range payload {
			m[k] = v
		}
		var loc = defaultLocale
		for k, v := range req.URL.Query() {
			if k == "locale" {
				loc = v[0]
				continue
			}
			m[k] = v[0]
		}

		var doc, err = gen.Generate(req.Context(), name, m, loc)
		if err != nil {
			var status = http.StatusInternalServerError
			var notFound *errortypes.TemplateNotFoundError
			if errors.As(err, &notFound) {
				status = http.StatusNotFound
			}
			http.Error(res, err.Error(), status)
			return
		}
		log.Debug().Str("type", name).Str("locale", loc).Msg("preview rendered")

		var buf bytes.Buffer
		buf.WriteString(doc.HTML)
		res.Header().Set("Content-Type", "text/html; charset=utf-8")
		res.Header().Set("X-Soymail-Subject", doc.Subject)
		io.Copy(res, &buf)
	})
}
