package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hfi/llm-secret-redactor/internal/audit"
	"github.com/hfi/llm-secret-redactor/internal/config"
	"github.com/hfi/llm-secret-redactor/internal/pattern"
	"github.com/hfi/llm-secret-redactor/internal/redact"
	"github.com/hfi/llm-secret-redactor/internal/session"
)

// scanReport is the JSON output of a one-shot scan.
type scanReport struct {
	SessionID string           `json:"session_id"`
	Redacted  string           `json:"redacted"`
	Detected  map[string]int64 `json:"detected"`
}

func newScanCmd() *cobra.Command {
	var (
		fileInput  string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "scan [text]",
		Short: "Redact secrets in a piece of text",
		Long: `Run one-shot detection and redaction over text from the argument,
a file, or stdin, and print the redacted result.

Every builtin pattern participates; log-only policies are ignored so
the output shows everything detection would catch.

Examples:
  redactor scan "my key is sk-..."
  redactor scan --file prompt.txt
  cat prompt.txt | redactor scan`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			switch {
			case len(args) > 0:
				text = args[0]
			case fileInput != "":
				data, err := os.ReadFile(fileInput)
				if err != nil {
					return fmt.Errorf("reading input file: %w", err)
				}
				text = string(data)
			default:
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("no input text; pass an argument, --file, or pipe to stdin")
			}

			return runScan(cmd, text, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&fileInput, "file", "f", "", "file containing text to scan")
	cmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "output result as JSON")

	return cmd
}

func runScan(cmd *cobra.Command, text string, outputJSON bool) error {
	cfg := config.DefaultConfig()
	cfg.Redaction.RolloutPercentage = 100
	cfg.Redaction.MaxTextLength = 0
	for key, policy := range cfg.Redaction.Patterns {
		policy.Enabled = true
		policy.LogOnly = false
		cfg.Redaction.Patterns[key] = policy
	}

	store := session.NewMemoryStore(1, cfg.Sessions.MaxSecretsPerSession, time.Minute)
	defer store.Close()

	mw := redact.New(cfg, pattern.NewRegistry(), store, audit.NewNopLogger(), newLogger(cfg.Logging))

	sessionID := uuid.NewString()
	redacted, err := mw.ProcessRequest(cmd.Context(), sessionID, text)
	if err != nil {
		return fmt.Errorf("redacting: %w", err)
	}

	if outputJSON {
		report := scanReport{
			SessionID: sessionID,
			Redacted:  redacted,
			Detected:  mw.GetMetrics(cmd.Context()).PatternsDetected,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintln(cmd.OutOrStdout(), redacted)
	return nil
}
