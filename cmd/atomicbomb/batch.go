package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qyzhg/atomic-bomb-engine/internal/model"
	"github.com/qyzhg/atomic-bomb-engine/internal/orchestrator"
)

// batchCmd is a supplemental subcommand (not in spec.md's CLI table) for
// driving a multi-endpoint run from a YAML config, grounded on
// LunarLaurus-Stratavore's viper-backed config loading.
var batchCmd = &cobra.Command{
	Use:   "batch <config.yaml>",
	Short: "Run a multi-endpoint batch test from a YAML config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

type batchFileConfig struct {
	Endpoints    []endpointConfig `mapstructure:"endpoints"`
	Concurrency  int              `mapstructure:"concurrency"`
	DurationSec  int              `mapstructure:"duration_secs"`
	Verbose      bool             `mapstructure:"verbose"`
	PreventSleep bool             `mapstructure:"prevent_sleep"`
	TargetRPS    float64          `mapstructure:"target_rps"`
	Step         *stepConfig      `mapstructure:"step"`
}

type stepConfig struct {
	IncreaseStep           float64 `mapstructure:"increase_step"`
	IncreaseIntervalSecond int     `mapstructure:"increase_interval_secs"`
}

type endpointConfig struct {
	Name       string            `mapstructure:"name"`
	URL        string            `mapstructure:"url"`
	Method     string            `mapstructure:"method"`
	TimeoutSec int               `mapstructure:"timeout_secs"`
	Weight     int               `mapstructure:"weight"`
	JSONBody   any               `mapstructure:"json_body"`
	FormFields []formFieldConfig `mapstructure:"form_fields"`
	Headers    map[string]string `mapstructure:"headers"`
	Cookie     string            `mapstructure:"cookie"`
	Assertions []assertionConfig `mapstructure:"assertions"`
}

// formFieldConfig is one ordered form-body entry. A YAML list of these
// (rather than a map) so field order survives from config file to wire
// body — spec.md documents form_fields as "ordered key/value pairs," and
// a map loses that ordering the moment viper decodes it.
type formFieldConfig struct {
	Key   string `mapstructure:"key"`
	Value string `mapstructure:"value"`
}

type assertionConfig struct {
	JSONPath string `mapstructure:"jsonpath"`
	Expected any    `mapstructure:"expected_value"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	v := viper.New()
	v.SetConfigFile(args[0])
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading batch config: %w", err)
	}

	var cfg batchFileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing batch config: %w", err)
	}

	endpoints := make([]model.Endpoint, 0, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		weight := e.Weight
		if weight <= 0 {
			weight = 1
		}
		ep := model.Endpoint{
			Name:       e.Name,
			URL:        e.URL,
			Method:     e.Method,
			TimeoutSec: e.TimeoutSec,
			Weight:     weight,
			JSONBody:   e.JSONBody,
			Headers:    e.Headers,
			Cookie:     e.Cookie,
		}
		for _, f := range e.FormFields {
			ep.FormFields = append(ep.FormFields, model.FormField{Key: f.Key, Value: f.Value})
		}
		for _, a := range e.Assertions {
			ep.Assertions = append(ep.Assertions, model.Assertion{JSONPath: a.JSONPath, Expected: a.Expected})
		}
		endpoints = append(endpoints, ep)
	}

	batch := model.Batch{
		Endpoints:      endpoints,
		ConcurrentReqs: cfg.Concurrency,
		DurationSec:    cfg.DurationSec,
		Verbose:        cfg.Verbose,
		PreventSleep:   cfg.PreventSleep,
		TargetRPS:      cfg.TargetRPS,
	}
	if cfg.Step != nil {
		batch.Step = &model.StepProfile{
			IncreaseStep:           cfg.Step.IncreaseStep,
			IncreaseIntervalSecond: cfg.Step.IncreaseIntervalSecond,
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := orchestrator.Run(ctx, batch)
	if err != nil {
		return err
	}

	fmt.Printf("total_requests=%d success_rate=%.2f%% error_rate=%.2f%% rps=%.2f\n",
		result.TotalRequests, result.SuccessRate, result.ErrorRate, result.RPS)
	for _, r := range result.ApiResults {
		fmt.Printf("  [%s] %s %s requests=%d success_rate=%.2f%% p95=%dms\n",
			r.Name, r.Method, r.URL, r.TotalRequests, r.SuccessRate, r.ResponseTime95Ms)
	}
	return nil
}
