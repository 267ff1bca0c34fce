package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/datamorph-ai/datamorph/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify DataMorph configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/datamorph/config.yaml
Project-specific overrides can be placed in .datamorph.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Secrets are masked, never echoed.
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.bedrock_region: %s\n", cfg.Anthropic.BedrockRegion)
	fmt.Printf("database.dsn: %s\n", cfg.Database.DSN)
	fmt.Printf("database.sample_rows: %d\n", cfg.Database.SampleRows)
	fmt.Printf("workflow.max_iterations: %d\n", cfg.Workflow.MaxIterations)
	fmt.Printf("workflow.ai_pass_threshold: %g\n", cfg.Workflow.AIPassThreshold)
	fmt.Printf("workflow.numeric_tolerance: %g\n", cfg.Workflow.NumericTolerance)
	fmt.Printf("workflow.ai_test_cap: %d\n", cfg.Workflow.AITestCap)
	fmt.Printf("artifacts.backend: %s\n", cfg.Artifacts.Backend)
	fmt.Printf("artifacts.bucket: %s\n", cfg.Artifacts.Bucket)
	fmt.Printf("server.addr: %s\n", cfg.Server.Addr)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue reads a dotted key from the config.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.bedrock_region":
		return cfg.Anthropic.BedrockRegion, nil
	case "database.dsn":
		return cfg.Database.DSN, nil
	case "database.sample_rows":
		return strconv.Itoa(cfg.Database.SampleRows), nil
	case "workflow.max_iterations":
		return strconv.Itoa(cfg.Workflow.MaxIterations), nil
	case "workflow.ai_pass_threshold":
		return strconv.FormatFloat(cfg.Workflow.AIPassThreshold, 'g', -1, 64), nil
	case "workflow.numeric_tolerance":
		return strconv.FormatFloat(cfg.Workflow.NumericTolerance, 'g', -1, 64), nil
	case "workflow.ai_test_cap":
		return strconv.Itoa(cfg.Workflow.AITestCap), nil
	case "artifacts.backend":
		return cfg.Artifacts.Backend, nil
	case "artifacts.bucket":
		return cfg.Artifacts.Bucket, nil
	case "server.addr":
		return cfg.Server.Addr, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// setConfigValue writes a dotted key into the config.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s", key, value)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.bedrock_region":
		cfg.Anthropic.BedrockRegion = value
	case "database.dsn":
		cfg.Database.DSN = value
	case "database.sample_rows":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		cfg.Database.SampleRows = n
	case "workflow.max_iterations":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		cfg.Workflow.MaxIterations = n
	case "workflow.ai_pass_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("invalid threshold for %s: %s", key, value)
		}
		cfg.Workflow.AIPassThreshold = f
	case "workflow.numeric_tolerance":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid tolerance for %s: %s", key, value)
		}
		cfg.Workflow.NumericTolerance = f
	case "workflow.ai_test_cap":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for %s: %s", key, value)
		}
		cfg.Workflow.AITestCap = n
	case "artifacts.backend":
		if value != "local" && value != "s3" {
			return fmt.Errorf("artifacts.backend must be local or s3")
		}
		cfg.Artifacts.Backend = value
	case "artifacts.bucket":
		cfg.Artifacts.Bucket = value
	case "server.addr":
		cfg.Server.Addr = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
