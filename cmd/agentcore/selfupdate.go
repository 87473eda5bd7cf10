package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentcore/internal/idgen"
	"github.com/nextlevelbuilder/agentcore/internal/selfupdate"
	"github.com/nextlevelbuilder/agentcore/internal/store"
)

func selfupdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selfupdate",
		Short: "drive the self-update patch pipeline from the command line",
	}
	cmd.AddCommand(selfupdateProposeCmd())
	cmd.AddCommand(selfupdateAdvanceCmd("validate"))
	cmd.AddCommand(selfupdateAdvanceCmd("test"))
	cmd.AddCommand(selfupdateApproveCmd())
	cmd.AddCommand(selfupdateApplyCmd())
	cmd.AddCommand(selfupdateAdvanceCmd("verify"))
	return cmd
}

func selfupdateProposeCmd() *cobra.Command {
	var diffPath, evidencePath, baselineRef, traceID string
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "submit a diff plus its evidence packet as a new patch proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			diff, err := os.ReadFile(diffPath)
			if err != nil {
				return fmt.Errorf("selfupdate propose: read diff: %w", err)
			}
			evidenceBytes, err := os.ReadFile(evidencePath)
			if err != nil {
				return fmt.Errorf("selfupdate propose: read evidence: %w", err)
			}
			var evidence store.Evidence
			if err := json.Unmarshal(evidenceBytes, &evidence); err != nil {
				return fmt.Errorf("selfupdate propose: parse evidence: %w", err)
			}

			if traceID == "" {
				traceID = idgen.Trace()
			}
			rec, err := a.pipe.Propose(cmd.Context(), selfupdate.Proposal{
				TraceID:     traceID,
				BaselineRef: baselineRef,
				Diff:        string(diff),
				Evidence:    evidence,
			})
			if err != nil {
				return err
			}
			return printPatchRecord(rec)
		},
	}
	cmd.Flags().StringVar(&diffPath, "diff", "", "path to a unified diff file")
	cmd.Flags().StringVar(&evidencePath, "evidence", "", "path to a JSON evidence packet")
	cmd.Flags().StringVar(&baselineRef, "baseline-ref", "", "git ref the diff was generated against")
	cmd.Flags().StringVar(&traceID, "trace-id", "", "trace id to file this proposal under (default: generated)")
	_ = cmd.MarkFlagRequired("diff")
	_ = cmd.MarkFlagRequired("evidence")
	_ = cmd.MarkFlagRequired("baseline-ref")
	return cmd
}

func selfupdateAdvanceCmd(step string) *cobra.Command {
	var traceID string
	cmd := &cobra.Command{
		Use:   step,
		Short: fmt.Sprintf("advance a proposed patch through the %s phase", step),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			var rec store.PatchRecord
			switch step {
			case "validate":
				rec, err = a.pipe.Validate(cmd.Context(), traceID)
			case "test":
				rec, err = a.pipe.Test(cmd.Context(), traceID)
			case "verify":
				rec, err = a.pipe.Verify(cmd.Context(), traceID)
			}
			if err != nil {
				return err
			}
			return printPatchRecord(rec)
		},
	}
	cmd.Flags().StringVar(&traceID, "trace-id", "", "trace id of the patch to advance")
	_ = cmd.MarkFlagRequired("trace-id")
	return cmd
}

func selfupdateApproveCmd() *cobra.Command {
	var traceID, approverID string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "approve a tested patch (production profile requires --approver)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			rec, err := a.pipe.Approve(cmd.Context(), traceID, approverID)
			if err != nil {
				return err
			}
			return printPatchRecord(rec)
		},
	}
	cmd.Flags().StringVar(&traceID, "trace-id", "", "trace id of the patch to approve")
	cmd.Flags().StringVar(&approverID, "approver", "", "operator id approving the patch (required in production profile)")
	_ = cmd.MarkFlagRequired("trace-id")
	return cmd
}

func selfupdateApplyCmd() *cobra.Command {
	var traceID string
	var riskScore float64
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "apply an approved patch and trigger a process restart",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			rec, err := a.pipe.Apply(cmd.Context(), traceID, riskScore)
			if err != nil {
				return err
			}
			return printPatchRecord(rec)
		},
	}
	cmd.Flags().StringVar(&traceID, "trace-id", "", "trace id of the patch to apply")
	cmd.Flags().Float64Var(&riskScore, "risk-score", 0, "self-assessed risk score, 0-1")
	_ = cmd.MarkFlagRequired("trace-id")
	return cmd
}

func printPatchRecord(rec store.PatchRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func closeApp(a *app) {
	if a.db != nil {
		_ = a.db.Close()
	}
}
