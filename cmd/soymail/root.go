package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robfig/soymail"
	"github.com/robfig/soymail/config"
	"github.com/robfig/soymail/design"
	"github.com/robfig/soymail/escape"
	"github.com/robfig/soymail/locale"
	"github.com/robfig/soymail/mail"
	"github.com/robfig/soymail/render"
	"github.com/robfig/soymail/store"
	"github.com/robfig/soymail/template"
)

// app holds state shared by the commands of one invocation.
type app struct {
	verbosity   int
	templateDir string
	locale      string
	mode        string
	strict      bool
	inline      bool

	cfg config.Config
	gen *soymail.Generator
}

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	var a = &app{}
	var rootCmd = &cobra.Command{
		Use:   "soymail",
		Short: "Render localized, styled email documents",
		Long: `soymail renders transactional email documents from templates, a data
payload and a locale, and injects the design-system stylesheet.

Configuration is read from SOYMAIL_* environment variables and an optional
.env file; flags override it.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(cmd.ErrOrStderr(), a.verbosity)
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.gen != nil {
				return a.gen.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	var flags = rootCmd.PersistentFlags()
	flags.CountVarP(&a.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	flags.StringVar(&a.templateDir, "templates", "", "template directory (default: embedded templates)")
	flags.StringVarP(&a.locale, "locale", "l", "", "locale (default: SOYMAIL_DEFAULT_LOCALE)")
	flags.StringVar(&a.mode, "mode", "", "store mode: production or development")
	flags.BoolVar(&a.strict, "strict", false, "fail on missing values and unresolved tokens")
	flags.BoolVar(&a.inline, "inline", false, "inline stylesheet rules into style attributes")

	rootCmd.AddCommand(
		newRenderCmd(a),
		newSendCmd(a),
		newCSSCmd(a),
		newValidateCmd(a),
		newHelpersCmd(a),
		newTypesCmd(a),
		newPreviewCmd(a),
		newExtractCmd(a),
	)
	return rootCmd
}

// init loads configuration, applies flag overrides and builds the generator.
func (a *app) init(cmd *cobra.Command) error {
	var cfg, err = config.Load()
	if err != nil {
		return err
	}
	var flags = cmd.Flags()
	if flags.Changed("templates") {
		cfg.TemplateDir = a.templateDir
		cfg.S3.Bucket = ""
	}
	if a.mode != "" {
		cfg.Mode = a.mode
	}
	if flags.Changed("strict") {
		cfg.Strict = a.strict
	}
	if flags.Changed("inline") {
		cfg.InlineStyles = a.inline
	}
	if a.locale == "" {
		a.locale = cfg.DefaultLocale
	}
	cfg.Watch = false
	if err := cfg.Validate(); err != nil {
		return err
	}
	if a.verbosity == 0 {
		zerolog.SetGlobalLevel(cfg.Level())
	}
	a.cfg = cfg

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if a.gen, err = soymail.FromConfig(ctx, cfg); err != nil {
		return err
	}
	log.Debug().Str("command", cmd.Name()).Str("locale", a.locale).Msg("command started")
	return nil
}

func setupLogger(w io.Writer, verbosity int) {
	switch verbosity {
	case 0:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case 1:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case 2:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}
	var base = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    w != io.Writer(os.Stderr),
	}).With().Timestamp().Logger()
	log.Logger = base

	// Package loggers are derived when their package loads, so each is
	// rebuilt on top of the console writer.
	for component, logger := range map[string]*zerolog.Logger{
		"soymail":  &soymail.Logger,
		"store":    &store.Logger,
		"render":   &render.Logger,
		"template": &template.Logger,
		"escape":   &escape.Logger,
		"design":   &design.Logger,
		"locale":   &locale.Logger,
		"mail":     &mail.Logger,
	} {
		*logger = base.With().Str("component", component).Logger()
	}
}
