package main

import (
	"fmt"
	"io"

	"rgehrsitz/rex/internal/alarm"
	"rgehrsitz/rex/internal/config"
	"rgehrsitz/rex/internal/runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configPath string
	logLevel   string
	button     string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "alarm",
		Short:         "Drive the alarm rule set from a scripted button sequence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [events...]",
		Short: "Apply push/release events and print the final ring state",
		Example: `  alarm run push release
  alarm run --button door --log-level debug push`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlarm(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to an engine config YAML file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides the config file")
	cmd.Flags().StringVar(&opts.button, "button", "alarm", "name of the button")
	return cmd
}

func loadConfig(opts *runOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func runAlarm(cmd *cobra.Command, opts *runOptions, args []string) error {
	// Events are checked before anything runs.
	events := make([]alarm.Status, 0, len(args))
	for _, arg := range args {
		status, err := alarm.ParseStatus(arg)
		if err != nil {
			return err
		}
		events = append(events, status)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(cfg.Level()).
		With().Timestamp().Logger()

	engineOpts := []runtime.Option{runtime.WithConfig(cfg), runtime.WithLogger(logger)}
	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		engineOpts = append(engineOpts, runtime.WithRegisterer(reg))
	}

	engine, err := runtime.New(engineOpts...)
	if err != nil {
		return err
	}
	sys, err := alarm.Install(engine, alarm.WithLogger(logger), alarm.WithBell(consoleBell{out: out}))
	if err != nil {
		return err
	}
	panel, err := alarm.NewPanel(engine, opts.button)
	if err != nil {
		return err
	}

	for _, status := range events {
		if err := panel.Set(status); err != nil {
			return err
		}
		fired, err := engine.RunContext(cmd.Context())
		if err != nil {
			return err
		}
		logger.Debug().Str("event", string(status)).Int("fired", fired).Msg("Event processed")
	}

	ringing, err := sys.Ringing()
	if err != nil {
		return err
	}
	state := "silent"
	if ringing {
		state = "ringing"
	}
	fmt.Fprintf(out, "ring: %s\n", state)

	if reg != nil {
		return writeMetrics(out, reg)
	}
	return nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}

type consoleBell struct {
	out io.Writer
}

func (b consoleBell) StartRinging(button string) error {
	_, err := fmt.Fprintf(b.out, "bell: ringing (%s)\n", button)
	return err
}

func (b consoleBell) StopRinging(button string) error {
	_, err := fmt.Fprintf(b.out, "bell: silent (%s)\n", button)
	return err
}
