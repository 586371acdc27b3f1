package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/agents"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/drafting"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/engine"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

func stagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the workflow stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigOnly()
			if err != nil {
				return err
			}
			list := stages.Ordered()
			for i := range list {
				list[i].RequiredArtifacts = cfg.RequiredArtifacts(list[i].StageName)
			}
			if viper.GetBool("json") {
				return printJSON(list)
			}
			tw := newTable("#", "Stage", "Name", "Agent", "Required artifacts")
			for _, s := range list {
				tw.AppendRow(table.Row{s.StageNumber, s.StageName, s.DisplayName, s.RecommendedAgent, strings.Join(s.RequiredArtifacts, ", ")})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func workflowCmd() *cobra.Command {
	wf := &cobra.Command{
		Use:   "workflow",
		Short: "Drive a case through its stages",
		Long:  "A case starts at reception and advances one stage at a time. 'advance --check' refuses to move while the stage checklist is incomplete.",
	}
	wf.AddCommand(workflowInitCmd())
	wf.AddCommand(workflowStatusCmd())
	wf.AddCommand(workflowCurrentCmd())
	wf.AddCommand(workflowAdvanceCmd())
	wf.AddCommand(workflowSetCmd())
	wf.AddCommand(workflowCheckCmd())
	return wf
}

func workflowInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <case-id>",
		Short: "Start the workflow of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stage, err := e.InitializeWorkflow(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(stage)
			})
		},
	}
	return cmd
}

func workflowStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <case-id>",
		Short: "Show every stage of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := e.Snapshot(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				if !snap.Initialized {
					fmt.Printf("Case %s: workflow not started\n", snap.CaseID)
				}
				tw := newTable("#", "Stage", "Status", "Started", "Completed", "Agent")
				for _, s := range snap.Stages {
					tw.AppendRow(table.Row{s.StageNumber, s.DisplayName, s.Status, deref(s.StartedAt), deref(s.CompletedAt), s.RecommendedAgent})
				}
				tw.Render()
				if snap.Finished {
					fmt.Println("Workflow finished.")
				}
				return nil
			})
		},
	}
	return cmd
}

func workflowCurrentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "current <case-id>",
		Short: "Show the stage in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cur, err := e.CurrentStage(ctx, args[0])
				if err != nil {
					return err
				}
				if cur == nil {
					if viper.GetBool("json") {
						return printJSON(nil)
					}
					fmt.Println("no stage in progress")
					return nil
				}
				return printJSONOrTable(cur)
			})
		},
	}
	return cmd
}

func workflowAdvanceCmd() *cobra.Command {
	var check bool
	var evidence []string
	cmd := &cobra.Command{
		Use:   "advance <case-id>",
		Short: "Complete the current stage and start the next",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					res engine.AdvanceResult
					err error
				)
				if check {
					res, err = e.AdvanceIfComplete(ctx, args[0], evidenceFrom(evidence), actorID())
				} else {
					res, err = e.AdvanceWorkflow(ctx, args[0], actorID())
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("%s completed\n", res.PreviousStage.StageName)
				if res.CurrentStage != nil {
					fmt.Printf("%s in progress\n", res.CurrentStage.StageName)
				} else {
					fmt.Println("workflow finished")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "refuse to advance while the checklist is incomplete")
	cmd.Flags().StringSliceVar(&evidence, "evidence", nil, "artifacts present (comma separated)")
	return cmd
}

func workflowSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <case-id> <stage> <status>",
		Short: "Override the status of one stage",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stage, err := e.UpdateStageStatus(ctx, args[0], args[1], args[2], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(stage)
			})
		},
	}
	return cmd
}

func workflowCheckCmd() *cobra.Command {
	var evidence []string
	cmd := &cobra.Command{
		Use:   "check <case-id> <stage>",
		Short: "Check a stage checklist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.VerifyStageCompleteness(ctx, args[0], args[1], evidenceFrom(evidence))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if res.Complete {
					fmt.Printf("%s complete\n", res.Stage)
					return nil
				}
				fmt.Printf("%s incomplete, missing: %s\n", res.Stage, strings.Join(res.MissingItems, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&evidence, "evidence", nil, "artifacts present (comma separated)")
	return cmd
}

func agentCmd() *cobra.Command {
	var kind, stage, inputPath, documentID, message string
	cmd := &cobra.Command{
		Use:   "agent <case-id>",
		Short: "Run an agent on a case",
		Long:  "Without --kind the agent recommended for the current stage runs. A failed run raises an alert on the case.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in *drafting.Input
			if inputPath != "" {
				loaded, err := readInput(inputPath)
				if err != nil {
					return err
				}
				in = &loaded
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				run, err := e.RunAgent(ctx, args[0], kind, agents.Task{
					Stage:      stage,
					ActorID:    actorID(),
					Input:      in,
					DocumentID: documentID,
					Message:    message,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(run)
				}
				status := "ok"
				if !run.Result.Success {
					status = "failed"
				}
				fmt.Printf("%s [%s]: %s\n", run.Agent, status, run.Result.Message)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "agent kind (default: recommended for the current stage)")
	cmd.Flags().StringVar(&stage, "stage", "", "stage the run belongs to")
	cmd.Flags().StringVar(&inputPath, "input", "", "case data file (yaml or json)")
	cmd.Flags().StringVar(&documentID, "document", "", "document id (reviewer)")
	cmd.Flags().StringVar(&message, "message", "", "message (communicator)")
	return cmd
}

func evidenceFrom(items []string) engine.Evidence {
	ev := engine.Evidence{}
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			ev[it] = true
		}
	}
	return ev
}

// readInput loads a drafting input from YAML; JSON files parse too.
func readInput(path string) (drafting.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return drafting.Input{}, err
	}
	var in drafting.Input
	if err := yaml.Unmarshal(data, &in); err != nil {
		return drafting.Input{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return in, nil
}
