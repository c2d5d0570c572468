package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zen-systems/promptgate/pkg/adapter"
	"github.com/zen-systems/promptgate/pkg/admission"
	"github.com/zen-systems/promptgate/pkg/config"
	"github.com/zen-systems/promptgate/pkg/dispatch"
	"github.com/zen-systems/promptgate/pkg/registry"
	"github.com/zen-systems/promptgate/pkg/usage"
)

var (
	configFile string
	callerFlag string
)

func main() {
	// Local .env is optional; ignore a missing file.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "promptgate",
		Short: "Text-generation gateway with per-caller admission control",
		Long: `Promptgate fronts one or more text-generation backends behind a uniform
	request/response contract, metering token usage and bounding per-caller
	request rates before a request reaches a backend.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&callerFlag, "caller", "local", "caller identity for admission and usage attribution")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(usageCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadWithFile(configFile, filepath.Dir(configFile))
	}
	return config.Load()
}

// newSink opens the configured usage database, or falls back to memory
// when none is configured.
func newSink(cfg *config.Config) (usage.Sink, func(), error) {
	if cfg.UsageDBPath == "" {
		return usage.NewMemorySink(), func() {}, nil
	}
	sink, err := usage.NewSQLiteSink(cfg.UsageDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open usage database: %w", err)
	}
	return sink, func() { _ = sink.Close() }, nil
}

func newOrchestrator(cfg *config.Config) (*dispatch.Orchestrator, func(), error) {
	sink, closeSink, err := newSink(cfg)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New(cfg)
	if _, err := reg.Resolve(); err != nil {
		closeSink()
		return nil, nil, err
	}

	o := dispatch.New(reg, admission.NewMemoryController(), sink, cfg)
	return o, closeSink, nil
}

func generateCmd() *cobra.Command {
	var maxTokens int
	var temperature float64
	var topP float64
	var modelFlag string
	var stopFlags []string

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate text from the configured provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			o, cleanup, err := newOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			req := adapter.Request{
				Prompt:        args[0],
				MaxTokens:     maxTokens,
				Temperature:   temperature,
				TopP:          topP,
				Model:         modelFlag,
				StopSequences: stopFlags,
			}

			caller := dispatch.Caller{ID: callerFlag, Active: true}
			result, err := o.Generate(context.Background(), caller, req)
			if err != nil {
				var admErr *dispatch.AdmissionError
				if errors.As(err, &admErr) {
					return fmt.Errorf("%s (remaining %d)", admErr.Error(), admErr.Decision.Remaining)
				}
				return err
			}

			fmt.Println(result.Text)
			fmt.Fprintf(os.Stderr, "\n[%s/%s] %d tokens (%d in, %d out), %.4f cost, %dms\n",
				result.Provider, result.Model, result.TotalTokens,
				result.InputTokens, result.OutputTokens, result.Cost, result.LatencyMS)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", 256, "maximum tokens to generate")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "sampling temperature (0.0-2.0)")
	cmd.Flags().Float64Var(&topP, "top-p", 0.9, "nucleus sampling probability (0.0-1.0)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "override model (empty uses the provider default)")
	cmd.Flags().StringArrayVar(&stopFlags, "stop", nil, "stop sequence (repeatable)")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available from the resolved provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			o, cleanup, err := newOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			models, err := o.ListModels()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tDESCRIPTION")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\n", m.ID, m.Description)
			}
			return w.Flush()
		},
	}
}

func usageCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show aggregated usage for a caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.UsageDBPath == "" {
				return fmt.Errorf("no usage database configured (set usage_db in config)")
			}

			sink, err := usage.NewSQLiteSink(cfg.UsageDBPath)
			if err != nil {
				return fmt.Errorf("failed to open usage database: %w", err)
			}
			defer func() { _ = sink.Close() }()

			since := time.Now().AddDate(0, 0, -days)
			stats, err := sink.ReadStats(context.Background(), callerFlag, since)
			if err != nil {
				return err
			}

			fmt.Printf("Usage for %s over the last %d days:\n", callerFlag, days)
			fmt.Printf("  requests: %d\n", stats.TotalRequests)
			fmt.Printf("  tokens:   %d\n", stats.TotalTokens)
			fmt.Printf("  cost:     %.4f\n", stats.TotalCost)

			if len(stats.ByModel) > 0 {
				var models []string
				for model := range stats.ByModel {
					models = append(models, model)
				}
				sort.Strings(models)

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "\nMODEL\tREQUESTS")
				for _, model := range models {
					fmt.Fprintf(w, "%s\t%d\n", model, stats.ByModel[model])
				}
				return w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "time range in days")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configured provider's prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			reg := registry.New(cfg)
			a, err := reg.Resolve()
			if err != nil {
				return err
			}

			log.Printf("[validate] provider %s ready (%d models)", a.Name(), len(a.Models()))
			fmt.Printf("provider %s: OK\n", a.Name())
			return nil
		},
	}
}
