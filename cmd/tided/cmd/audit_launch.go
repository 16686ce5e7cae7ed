package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	launchkeeper "github.com/tide-protocol/tidechain/x/launch/keeper"
)

func auditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run deterministic audit checks",
	}
	cmd.AddCommand(auditLaunchLogCommand())
	return cmd
}

type launchLogAuditResult struct {
	Passed      bool   `json:"passed"`
	Records     int    `json:"records"`
	FirstSeq    uint64 `json:"first_sequence,omitempty"`
	LastSeq     uint64 `json:"last_sequence,omitempty"`
	LastHash    string `json:"last_hash,omitempty"`
	FailureInfo string `json:"failure_info,omitempty"`
}

func auditLaunchLogCommand() *cobra.Command {
	var (
		logFile string
		pretty  bool
	)

	cmd := &cobra.Command{
		Use:   "launch-log",
		Short: "Verify the hash chain of an exported launch audit log",
		Long: `Verify an audit log dump produced by the launch module's JSON export.

The log file must be a JSON array of audit records. Each record's hash is
recomputed from its fields and checked against the recorded hash, and each
record's previous-hash link is checked against its predecessor.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logFile == "" {
				return fmt.Errorf("--log-file is required")
			}

			payload, err := os.ReadFile(logFile)
			if err != nil {
				return fmt.Errorf("read log file: %w", err)
			}

			var records []launchkeeper.AuditRecord
			if err := json.Unmarshal(payload, &records); err != nil {
				return fmt.Errorf("parse log JSON: %w", err)
			}

			result := launchLogAuditResult{
				Passed:  true,
				Records: len(records),
			}
			if len(records) > 0 {
				result.FirstSeq = records[0].Sequence
				result.LastSeq = records[len(records)-1].Sequence
				result.LastHash = records[len(records)-1].RecordHash
			}
			if chainErr := launchkeeper.VerifyRecordChain(records); chainErr != nil {
				result.Passed = false
				result.FailureInfo = chainErr.Error()
			}

			var out []byte
			if pretty {
				out, err = json.MarshalIndent(result, "", "  ")
			} else {
				out, err = json.Marshal(result)
			}
			if err != nil {
				return fmt.Errorf("marshal result: %w", err)
			}

			if _, err = cmd.OutOrStdout().Write(append(out, '\n')); err != nil {
				return err
			}
			if !result.Passed {
				return fmt.Errorf("audit log chain verification failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "Path to exported audit log JSON")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Pretty-print JSON output")
	return cmd
}
