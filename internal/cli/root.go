package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/melinda/internal/config"
	"github.com/five82/melinda/pkg/melinda"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env := newEnvironment()
	rootCmd := newRootCmd(env)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		reportError(env.stdout, env.stderr, env.output, err)
		return 1
	}
	return 0
}

func reportError(stdout, stderr io.Writer, output string, err error) {
	if output == formatJSON {
		errObj := map[string]any{"error": err.Error()}
		var apiErr *melinda.APIError
		if errors.As(err, &apiErr) {
			errObj["status"] = apiErr.Status
			if apiErr.Message != "" {
				errObj["message"] = apiErr.Message
			}
		}
		_ = printJSON(stdout, errObj)
		return
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
}

func newRootCmd(env *environment) *cobra.Command {
	var (
		configPath string
		baseURL    string
		username   string
		password   string
		cataloger  string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "melinda",
		Short:         "Melinda REST API client",
		Long:          "Command-line client for the Melinda bibliographic record REST API: records, bulk jobs and logs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(env.output); err != nil {
				return err
			}

			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			env.logger = slog.New(slog.NewTextHandler(env.stderr, &slog.HandlerOptions{Level: level}))

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Apply precedence: flag > env > config file > default
			flags := cmd.Flags()
			if flags.Changed("base-url") {
				cfg.BaseURL = baseURL
			}
			if flags.Changed("username") {
				cfg.Username = username
			}
			if flags.Changed("password") {
				cfg.Password = password
			}
			if flags.Changed("cataloger") {
				cfg.Cataloger = cataloger
			}
			env.cfg = cfg
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.config/melinda/config.toml)")
	pf.StringVar(&baseURL, "base-url", "", "Melinda REST API base URL (env "+config.EnvBaseURL+")")
	pf.StringVar(&username, "username", "", "API username (env "+config.EnvUsername+")")
	pf.StringVar(&password, "password", "", "API password (env "+config.EnvPassword+")")
	pf.StringVar(&cataloger, "cataloger", "", "default cataloger for record and bulk operations (env "+config.EnvCataloger+")")
	pf.StringVarP(&env.output, "output", "o", formatText, "Output format (text, json, yaml)")
	pf.BoolVar(&debug, "debug", false, "log request details to stderr")

	rootCmd.SetOut(env.stdout)
	rootCmd.SetErr(env.stderr)
	rootCmd.SetIn(env.stdin)

	rootCmd.AddCommand(newRecordCmd(env))
	rootCmd.AddCommand(newBulkCmd(env))
	rootCmd.AddCommand(newLogsCmd(env))
	rootCmd.AddCommand(newVersionCmd(env))

	return rootCmd
}

// environment carries the resolved settings and I/O streams shared by all
// commands. Tests replace the streams and the terminal hooks.
type environment struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	output string

	cfg    config.Config
	logger *slog.Logger

	isTerminal   func() bool
	readPassword func() ([]byte, error)
	clientOpts   []melinda.Option
}

func newEnvironment() *environment {
	return &environment{
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		output:       formatText,
		logger:       slog.New(slog.DiscardHandler),
		isTerminal:   stdinIsTerminal,
		readPassword: readStdinPassword,
	}
}

func (e *environment) clientConfig() (melinda.Config, []melinda.Option, error) {
	if err := e.cfg.Validate(); err != nil {
		return melinda.Config{}, nil, err
	}
	if e.cfg.Password == "" {
		pw, err := e.promptPassword()
		if err != nil {
			return melinda.Config{}, nil, err
		}
		e.cfg.Password = pw
	}
	opts := append(e.cfg.ClientOptions(), melinda.WithLogger(e.logger))
	opts = append(opts, e.clientOpts...)
	return e.cfg.Client(), opts, nil
}

func (e *environment) recordClient() (*melinda.RecordClient, error) {
	cfg, opts, err := e.clientConfig()
	if err != nil {
		return nil, err
	}
	return melinda.NewRecordClient(cfg, opts...)
}

func (e *environment) logClient() (*melinda.LogClient, error) {
	cfg, opts, err := e.clientConfig()
	if err != nil {
		return nil, err
	}
	return melinda.NewLogClient(cfg, opts...)
}
