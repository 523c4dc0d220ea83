package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	client "github.com/hsn0918/llamacloud-client"
	"github.com/hsn0918/llamacloud-client/agentdata"
	"github.com/hsn0918/llamacloud-client/batch"
)

type extractedRecord = agentdata.ExtractedData[map[string]any]

type extractOptions struct {
	opts             *cliOptions
	schemaPath       string
	agentID          string
	mode             string
	systemPrompt     string
	citeSources      bool
	confidenceScores bool
	outputDir        string
	deployment       string
	collection       string
	files            []string
	template         client.ExtractRequest
}

func newExtractCmd(opts *cliOptions) *cobra.Command {
	eo := &extractOptions{opts: opts}

	cmd := &cobra.Command{
		Use:   "extract <file|dir|glob>...",
		Short: "Extract structured data from documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := eo.complete(args); err != nil {
				return eo.opts.recordFailure(args[0], err)
			}
			return eo.run(cmd)
		},
	}

	cmd.Flags().StringVar(&eo.schemaPath, "schema", "", "JSON Schema file (YAML or JSON) describing the data to extract")
	cmd.Flags().StringVar(&eo.agentID, "agent-id", "", "Run a stored extraction agent instead of --schema")
	cmd.Flags().StringVar(&eo.mode, "mode", string(client.ExtractModeBalanced), "Extraction mode: fast|balanced|premium|multimodal")
	cmd.Flags().StringVar(&eo.systemPrompt, "system-prompt", "", "Additional instructions for the extractor")
	cmd.Flags().BoolVar(&eo.citeSources, "cite-sources", false, "Attach page citations to extracted fields")
	cmd.Flags().BoolVar(&eo.confidenceScores, "confidence-scores", false, "Attach per-field confidence")
	cmd.Flags().StringVar(&eo.outputDir, "output-dir", "", "Directory to store one JSON result per input")
	cmd.Flags().StringVar(&eo.deployment, "store-deployment", "", "Store results as agent data in this deployment")
	cmd.Flags().StringVar(&eo.collection, "store-collection", agentdata.DefaultCollection, "Agent data collection used with --store-deployment")

	return cmd
}

func parseExtractMode(mode string) (client.ExtractMode, error) {
	switch m := client.ExtractMode(strings.ToUpper(mode)); m {
	case client.ExtractModeFast, client.ExtractModeBalanced, client.ExtractModePremium, client.ExtractModeMultimodal:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported extraction mode: %s", mode)
	}
}

func (o *extractOptions) complete(args []string) error {
	if o.schemaPath == "" && o.agentID == "" {
		return errors.New("flag --schema or --agent-id is required")
	}

	mode, err := parseExtractMode(o.mode)
	if err != nil {
		return err
	}
	o.template = client.ExtractRequest{
		AgentID: o.agentID,
		Config: client.ExtractConfig{
			ExtractionMode:   mode,
			SystemPrompt:     o.systemPrompt,
			CiteSources:      o.citeSources,
			ConfidenceScores: o.confidenceScores,
		},
	}
	if o.schemaPath != "" {
		if err := readDocument(o.schemaPath, &o.template.DataSchema); err != nil {
			return err
		}
	}

	files, err := collectInputs(args, documentExts)
	if err != nil {
		return err
	}
	o.files = files
	return nil
}

func (o *extractOptions) run(cmd *cobra.Command) error {
	cli, err := o.opts.client()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var store *agentdata.Client[extractedRecord]
	if o.deployment != "" {
		store, err = agentdata.New[extractedRecord](cli, o.deployment, nil,
			agentdata.WithCollection(o.collection),
			agentdata.WithLogger(o.opts.logger.Named("agentdata")),
		)
		if err != nil {
			return err
		}
	}

	outcomes := cli.ExtractFiles(ctx, o.template, o.files)
	for _, out := range outcomes {
		if !out.OK() {
			_ = o.opts.recordFailure(out.Item, out.Err)
			continue
		}
		o.opts.logger.Info("extract success", zap.String("file", out.Item), zap.String("job_id", out.Value.JobID))

		if store != nil {
			if err := o.store(ctx, store, out.Value); err != nil {
				_ = o.opts.recordFailure(out.Item, err)
			}
			continue
		}
		if err := printJSON(cmd.OutOrStdout(), outputPath(o.outputDir, out.Item, ".json"), out.Value); err != nil {
			return err
		}
	}

	if failed := batch.Failures(outcomes); len(failed) > 0 {
		return fmt.Errorf("extract completed with %d of %d failures, first: %w", len(failed), len(outcomes), failed[0].Err)
	}
	return nil
}

// store saves a run for review. Runs that fail validation are stored with status error.
func (o *extractOptions) store(ctx context.Context, store *agentdata.Client[extractedRecord], run *client.ExtractRun) error {
	rec, err := agentdata.FromExtractionResult[map[string]any](run, nil)
	var invalid *agentdata.InvalidExtractionError
	switch {
	case errors.As(err, &invalid):
		rec = invalid.Item
	case err != nil:
		return err
	}

	item, err := store.Create(ctx, *rec)
	if err != nil {
		return err
	}
	fields := []zap.Field{zap.String("id", item.ID), zap.String("status", rec.Status)}
	if rec.OverallConfidence != nil {
		fields = append(fields, zap.Float64("confidence", *rec.OverallConfidence))
	}
	o.opts.logger.Info("stored extraction", fields...)
	return nil
}
