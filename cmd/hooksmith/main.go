// Command hooksmith is the host adapter: the host's hook mechanism invokes
// one subcommand per lifecycle stage, passing the event record on stdin.
// The directive payload is written to stdout and the result status mapped
// to the exit code (0 ok, 1 warning, 2 blocking failure).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hooksmith/internal/hook"
	"hooksmith/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Configure viper for the top-level settings: config dir, log level,
	// outer deadline. Documents inside the config dir are the pipeline's
	// own business.
	viper.SetConfigName("hooksmith")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.hooksmith")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("HOOKSMITH")
	viper.AutomaticEnv()
	viper.SetDefault("config_dir", defaultConfigDir())
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("deadline", "2s")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "hooksmith: settings: %v\n", err)
			return 2
		}
	}

	exitCode := 0
	root := &cobra.Command{
		Use:           "hooksmith",
		Short:         "Lifecycle hook pipeline for agent hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config-dir", "", "configuration document directory")
	_ = viper.BindPFlag("config_dir", root.PersistentFlags().Lookup("config-dir"))

	for _, stage := range []hook.Stage{hook.StageSessionStart, hook.StagePreTool, hook.StagePostTool, hook.StageStop} {
		root.AddCommand(stageCommand(stage, &exitCode))
	}
	root.AddCommand(reloadCommand(&exitCode))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hooksmith: %v\n", err)
		// Stage commands never return an error, so one escaping here is
		// from an admin command like reload, where a broken deployment
		// must be visible. Anything else must not block the host.
		if exitCode != 0 {
			return exitCode
		}
		return 0
	}
	return exitCode
}

// stageCommand builds one subcommand per lifecycle stage; the subcommand
// name uses dashes (session-start) while the wire tag uses underscores.
func stageCommand(stage hook.Stage, exitCode *int) *cobra.Command {
	name := dashed(string(stage))
	return &cobra.Command{
		Use:   name,
		Short: "Handle the " + string(stage) + " lifecycle stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := newPipeline()
			if err != nil {
				// A broken deployment is reported loudly on stderr but the
				// host still gets a usable result.
				fmt.Fprintf(os.Stderr, "hooksmith: %v\n", err)
				emit(cmd.OutOrStdout(), hook.Result{Status: hook.StatusOK,
					Messages: []string{"hook pipeline unavailable: " + err.Error()}})
				return nil
			}

			data, _ := io.ReadAll(cmd.InOrStdin())
			event, err := hook.ParseEvent(data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "hooksmith: %v\n", err)
				emit(cmd.OutOrStdout(), hook.Result{Status: hook.StatusOK,
					Messages: []string{"unreadable event payload ignored"}})
				return nil
			}
			event.Stage = stage

			deadline := viper.GetDuration("deadline")
			if deadline <= 0 {
				deadline = 2 * time.Second
			}
			ctx, cancel := context.WithTimeout(context.Background(), deadline)
			defer cancel()

			result := pipeline.Dispatch(ctx, event)
			emit(cmd.OutOrStdout(), result)
			*exitCode = result.ExitCode()
			return nil
		},
	}
}

func reloadCommand(exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Validate and reload the configuration documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := newPipeline()
			if err == nil {
				err = pipeline.Reload()
			}
			if err != nil {
				// Unlike the stage commands, reload exists to validate
				// the deployment: bad configuration must exit non-zero.
				*exitCode = 2
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	}
}

func newPipeline() (*hook.Pipeline, error) {
	obs := observability.NewLogger(observability.LogConfig{
		Level:  viper.GetString("log_level"),
		Format: viper.GetString("log_format"),
	})
	return hook.New(viper.GetString("config_dir"),
		hook.WithObservability(obs),
		hook.WithMetrics(observability.DefaultMetrics()),
	)
}

func emit(w io.Writer, result hook.Result) {
	encoder := json.NewEncoder(w)
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "hooksmith: encode result: %v\n", err)
	}
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hooksmith/config"
	}
	return filepath.Join(home, ".hooksmith", "config")
}

func dashed(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			out[i] = '-'
		} else {
			out[i] = s[i]
		}
	}
	return string(out)
}
