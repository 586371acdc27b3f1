package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/app"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/config"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/engine"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/repo"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

func loadConfigOnly() (*config.Config, error) {
	return app.LoadConfig(viper.GetString("workspace"), viper.GetString("office"))
}

func draftCmd() *cobra.Command {
	var inputPath, docType string
	var showContent bool
	cmd := &cobra.Command{
		Use:   "draft <case-id>",
		Short: "Render and store a draft",
		Long:  fmt.Sprintf("Document types: %v. Missing case data renders as [PLACEHOLDERS].", stages.DocumentTypes()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(inputPath)
			if err != nil {
				return err
			}
			if docType != "" {
				in.DocumentType = docType
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.CreateDraft(ctx, args[0], in, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc)
				}
				fmt.Printf("draft %s: %s\n", doc.ID, doc.Title)
				if showContent {
					fmt.Println()
					fmt.Println(doc.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "case data file (yaml or json)")
	cmd.Flags().StringVar(&docType, "type", "", "document type (overrides the file)")
	cmd.Flags().BoolVar(&showContent, "print", false, "print the rendered text")
	_ = cmd.MarkFlagRequired("input")
	cmd.AddCommand(draftListCmd())
	return cmd
}

func draftListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <case-id>",
		Short: "List the drafts of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				docs, err := r.ListDocuments(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(docs)
				}
				tw := newTable("ID", "Type", "Title", "Created")
				for _, d := range docs {
					tw.AppendRow(table.Row{d.ID, d.DocumentType, d.Title, ago(d.CreatedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <document-id>",
		Short: "Verify a stored draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.VerifyDocument(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				tw := newTable("Criterion", "OK")
				tw.AppendRow(table.Row{"formal_requirements", res.Criteria.FormalRequirements})
				tw.AppendRow(table.Row{"legal_compliance", res.Criteria.LegalCompliance})
				tw.AppendRow(table.Row{"citations", res.Criteria.Citations})
				tw.AppendRow(table.Row{"logical_coherence", res.Criteria.LogicalCoherence})
				tw.AppendRow(table.Row{"alignment_with_objectives", res.Criteria.AlignmentWithObjectives})
				tw.Render()
				for _, rec := range res.Recommendations {
					fmt.Println("-", rec)
				}
				return nil
			})
		},
	}
	return cmd
}

func alertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Case alerts",
	}
	cmd.AddCommand(alertCreateCmd())
	cmd.AddCommand(alertListCmd())
	cmd.AddCommand(alertResolveCmd())
	return cmd
}

func alertCreateCmd() *cobra.Command {
	var title, description, priority string
	cmd := &cobra.Command{
		Use:   "create <case-id>",
		Short: "Raise an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				alert, err := e.CreateAlert(ctx, args[0], domain.AlertInput{
					Title:       title,
					Description: description,
					Priority:    priority,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(alert)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", domain.PriorityMedium, "low|medium|high")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func alertListCmd() *cobra.Command {
	var caseID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAlerts(ctx, caseID, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Case", "Priority", "Status", "Title", "Created")
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.CaseID, a.Priority, a.Status, a.Title, ago(a.CreatedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&caseID, "case", "", "case filter")
	cmd.Flags().StringVar(&status, "status", "", "pending|resolved")
	return cmd
}

func alertResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Resolve a pending alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				alert, err := e.ResolveAlert(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(alert)
			})
		},
	}
	return cmd
}
