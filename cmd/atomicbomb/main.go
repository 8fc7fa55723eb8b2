// Command atomicbomb is the CLI front door for the load generator:
// a single-endpoint convenience path on the root command (SPEC_FULL.md
// §6's CLI surface table) plus a `batch` subcommand for multi-endpoint
// YAML configs (§6.1). Grounded on cuemby-warren/cmd/warren/main.go's
// cobra root-command-plus-PersistentFlags-plus-OnInitialize shape.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qyzhg/atomic-bomb-engine/internal/errs"
	"github.com/qyzhg/atomic-bomb-engine/internal/logging"
	"github.com/qyzhg/atomic-bomb-engine/internal/model"
	"github.com/qyzhg/atomic-bomb-engine/internal/orchestrator"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "atomicbomb",
	Short: "A weighted, concurrent HTTP load generator",
	Long: `atomicbomb drives concurrent HTTP load against one or more
endpoints, with optional ramped concurrency, JSON-path assertions, and
live 1Hz result snapshots.`,
	RunE: runSingle,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.Flags().StringP("url", "u", "", "target URL (required)")
	rootCmd.Flags().StringP("method", "m", "GET", "HTTP method")
	rootCmd.Flags().IntP("duration-secs", "d", 1, "test duration in seconds")
	rootCmd.Flags().IntP("concurrent-requests", "c", 1, "concurrency")
	rootCmd.Flags().Int("timeout", 0, "per-request timeout in seconds (0 = none)")
	rootCmd.Flags().BoolP("verbose", "v", false, "print response bodies")
	rootCmd.Flags().StringP("json", "j", "", "JSON request body")
	rootCmd.Flags().StringP("form", "f", "", "form body, k1=v1&k2=v2...")
	rootCmd.Flags().StringArrayP("header", "H", nil, "request header, 'Name: Value' (repeatable)")
	rootCmd.Flags().StringP("cookie", "C", "", "raw Cookie header value")
	rootCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(batchCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	logging.Init(logging.Config{Level: logging.Level(level), JSONOutput: jsonOut})
}

func runSingle(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	method, _ := cmd.Flags().GetString("method")
	duration, _ := cmd.Flags().GetInt("duration-secs")
	concurrency, _ := cmd.Flags().GetInt("concurrent-requests")
	timeout, _ := cmd.Flags().GetInt("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonBody, _ := cmd.Flags().GetString("json")
	formBody, _ := cmd.Flags().GetString("form")
	headerLines, _ := cmd.Flags().GetStringArray("header")
	cookie, _ := cmd.Flags().GetString("cookie")

	if jsonBody != "" && formBody != "" {
		return errs.New(errs.ConfigError, "cli", "", errs.ErrBothJSONAndForm)
	}

	ep := model.Endpoint{
		Name:       "default",
		URL:        url,
		Method:     method,
		TimeoutSec: timeout,
		Weight:     1,
		Headers:    parseHeaders(headerLines),
		Cookie:     cookie,
	}
	if jsonBody != "" {
		parsed, err := parseJSONBody(jsonBody)
		if err != nil {
			return errs.New(errs.ConfigError, "cli", "", err)
		}
		ep.JSONBody = parsed
	}
	if formBody != "" {
		ep.FormFields = parseForm(formBody)
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := orchestrator.RunSingle(ctx, ep, concurrency, duration, verbose)
	if err != nil {
		return err
	}

	fmt.Printf("total_requests=%d success_rate=%.2f%% rps=%.2f p95=%dms p99=%dms err_count=%d\n",
		result.TotalRequests, result.SuccessRate, result.RPS, result.ResponseTime95Ms, result.ResponseTime99Ms, result.ErrCount)
	return nil
}

// parseJSONBody decodes the --json flag's raw text into a generic value so
// it round-trips through pipeline.buildBody's json.Marshal unchanged,
// rather than being marshaled a second time as a quoted string.
func parseJSONBody(raw string) (any, error) {
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("invalid --json value: %w", err)
	}
	return parsed, nil
}

func parseHeaders(lines []string) map[string]string {
	if len(lines) == 0 {
		return nil
	}
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers
}

func parseForm(raw string) []model.FormField {
	pairs := strings.Split(raw, "&")
	fields := make([]model.FormField, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			fields = append(fields, model.FormField{Key: kv[0], Value: kv[1]})
		} else {
			fields = append(fields, model.FormField{Key: kv[0]})
		}
	}
	return fields
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
