package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail operations",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the hash chain of the audit trail",
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent audit records",
	RunE:  runAuditTail,
}

var auditTailLast int

func init() {
	auditTailCmd.Flags().IntVar(&auditTailLast, "last", 20, "Number of records to show")
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.close()

	ok, badIndex, err := rt.auditLog.Verify()
	if err != nil {
		return fmt.Errorf("audit verify: %w", err)
	}
	if !ok {
		fmt.Println(styleError.Render(fmt.Sprintf("Audit chain BROKEN at record %d.", badIndex)))
		return exitErr(1)
	}
	fmt.Println(styleSuccess.Render("Audit chain intact."))
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	if auditTailLast < 1 {
		return fmt.Errorf("--last must be at least 1, got %d", auditTailLast)
	}

	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.close()

	records, err := rt.auditLog.Recent(auditTailLast)
	if err != nil {
		return fmt.Errorf("audit read: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No audit records.")
		return nil
	}

	for _, r := range records {
		line := fmt.Sprintf("%s  %-7s %-28s %s", r.Timestamp, r.Kind, r.AttemptID, r.Message)
		if r.Severity != "" {
			line += "  [" + r.Severity + "]"
		}
		fmt.Println(line)
	}
	return nil
}
