package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/archstudio/intake/internal/analysis"
	"github.com/archstudio/intake/internal/checklist"
	"github.com/archstudio/intake/internal/models"
)

type reconcileReport struct {
	Items          []models.ChecklistItem `json:"items"`
	Changed        []string               `json:"changed"`
	ParsedFromText bool                   `json:"parsed_from_text"`
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var (
		checklistPath string
		templateKey   string
		analysisPath  string
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay a model answer against a checklist and show what would change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			if analysisPath == "" {
				return fmt.Errorf("--analysis is required")
			}

			var items []models.ChecklistItem
			switch {
			case checklistPath != "":
				b, err := os.ReadFile(checklistPath)
				if err != nil {
					return fmt.Errorf("read checklist: %w", err)
				}
				if err := json.Unmarshal(b, &items); err != nil {
					return fmt.Errorf("decode checklist: %w", err)
				}
			case templateKey != "":
				projectType, stage, ok := strings.Cut(templateKey, "/")
				if !ok {
					return fmt.Errorf("--template must look like <project_type>/<stage>")
				}
				templates, err := checklist.LoadTemplates(settings.TemplatesPath)
				if err != nil {
					return err
				}
				tpl, ok := templates.Lookup(projectType, stage)
				if !ok {
					return fmt.Errorf("no template for %s", templateKey)
				}
				items = checklist.FromTemplate(tpl)
			default:
				return fmt.Errorf("one of --checklist or --template is required")
			}

			raw, err := os.ReadFile(analysisPath)
			if err != nil {
				return fmt.Errorf("read analysis: %w", err)
			}
			result, err := analysis.Parse(string(raw))
			if err != nil {
				return err
			}

			next := checklist.Reconcile(items, result.ChecklistAnalysis)
			report := reconcileReport{Items: next, Changed: checklist.Changed(items, next), ParsedFromText: result.ParsedFromText}
			if ctx.jsonOut {
				return writeJSON(cmd, report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderChecklist(report.Items, report.Changed))
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d items changed\n", len(report.Changed), len(report.Items))
			return nil
		},
	}
	cmd.Flags().StringVar(&checklistPath, "checklist", "", "JSON file with the current checklist items")
	cmd.Flags().StringVar(&templateKey, "template", "", "Start from a template, e.g. default/first_call")
	cmd.Flags().StringVar(&analysisPath, "analysis", "", "File with the raw model answer (JSON or text)")
	return cmd
}

func renderChecklist(items []models.ChecklistItem, changed []string) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		mark := ""
		if slices.Contains(changed, item.ID) {
			mark = "*"
		}
		rows = append(rows, []string{mark, item.ID, item.Question, strconv.FormatBool(item.Checked), item.Notes})
	}
	return renderTable([]string{"", "ID", "Question", "Checked", "Notes"}, rows)
}
