package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/climacast/recoverd/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [rollback-id]",
	Short: "Render a run's report artifact",
	Long:  "Renders the named report artifact as terminal markdown, or the most recent one when no id is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showReport,
}

var reportRaw bool

func init() {
	reportCmd.Flags().BoolVar(&reportRaw, "raw", false, "Print the raw JSON artifact")
	rootCmd.AddCommand(reportCmd)
}

func showReport(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.close()

	dir := rt.cfg.ReportsDir()
	var path string
	if len(args) == 1 {
		path = filepath.Join(dir, args[0]+".json")
	} else {
		path, err = report.Latest(dir)
		if err != nil {
			return fmt.Errorf("no report artifacts found: %w", err)
		}
	}

	artifact, err := report.Load(path)
	if err != nil {
		return err
	}

	if reportRaw {
		data, err := json.MarshalIndent(artifact, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(renderMarkdown(report.Markdown(artifact)))
	return nil
}

// renderMarkdown renders markdown for terminal display, falling back to
// the plain text when the renderer cannot start.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}
