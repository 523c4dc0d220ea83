package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	client "github.com/hsn0918/llamacloud-client"
	"github.com/hsn0918/llamacloud-client/batch"
)

type parseOptions struct {
	opts        *cliOptions
	targetPages string
	language    string
	parseMode   string
	pagesPerJob int
	outputDir   string
	markdown    bool
	files       []string
}

func newParseCmd(opts *cliOptions) *cobra.Command {
	po := &parseOptions{opts: opts}

	cmd := &cobra.Command{
		Use:   "parse <file|dir|glob>...",
		Short: "Parse documents into text and markdown",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := po.complete(args); err != nil {
				return po.opts.recordFailure(args[0], err)
			}
			return po.run(cmd)
		},
	}

	cmd.Flags().StringVar(&po.targetPages, "target-pages", "", "Zero-based pages to parse, e.g. 0,2-4")
	cmd.Flags().StringVar(&po.language, "language", "", "Document language hint")
	cmd.Flags().StringVar(&po.parseMode, "parse-mode", "", "Server parse mode")
	cmd.Flags().IntVar(&po.pagesPerJob, "pages-per-job", 0, "Split each document into jobs of this many pages (0 disables)")
	cmd.Flags().StringVar(&po.outputDir, "output-dir", "", "Directory to store one result per input")
	cmd.Flags().BoolVar(&po.markdown, "markdown", false, "Write markdown instead of JSON results")

	return cmd
}

func (o *parseOptions) complete(args []string) error {
	if o.pagesPerJob < 0 {
		return errors.New("--pages-per-job must not be negative")
	}
	files, err := collectInputs(args, documentExts)
	if err != nil {
		return err
	}
	o.files = files
	return nil
}

func (o *parseOptions) template() client.ParseRequest {
	return client.ParseRequest{
		TargetPages: o.targetPages,
		Language:    o.language,
		ParseMode:   o.parseMode,
	}
}

func (o *parseOptions) run(cmd *cobra.Command) error {
	cli, err := o.opts.client()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := o.opts.logger

	if o.pagesPerJob > 0 {
		var errs []error
		for _, path := range o.files {
			req := o.template()
			req.File = client.FileInput{Path: path}
			result, err := cli.ParseSplit(ctx, req, o.pagesPerJob)
			if err != nil {
				errs = append(errs, o.opts.recordFailure(path, err))
			}
			if result != nil {
				if err := o.save(cmd, path, result); err != nil {
					errs = append(errs, err)
				}
			}
		}
		return errors.Join(errs...)
	}

	outcomes := cli.ParseFiles(ctx, o.template(), o.files, batch.WithProgress(func(done, total int) {
		logger.Info("parse progress", zap.Int("done", done), zap.Int("total", total))
	}))

	for _, out := range outcomes {
		if !out.OK() {
			_ = o.opts.recordFailure(out.Item, out.Err)
			continue
		}
		if err := o.save(cmd, out.Item, out.Value); err != nil {
			return err
		}
	}

	if failed := batch.Failures(outcomes); len(failed) > 0 {
		return fmt.Errorf("parse completed with %d of %d failures, first: %w", len(failed), len(outcomes), failed[0].Err)
	}
	return nil
}

func (o *parseOptions) save(cmd *cobra.Command, input string, result *client.ParseResult) error {
	o.opts.logger.Info("parse success",
		zap.String("file", input),
		zap.String("job_id", result.JobID),
		zap.Int("pages", len(result.Pages)),
	)

	if o.markdown {
		target := outputPath(o.outputDir, input, ".md")
		if target == "" {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), result.Markdown())
			return err
		}
		return writeFile(target, []byte(result.Markdown()))
	}
	return printJSON(cmd.OutOrStdout(), outputPath(o.outputDir, input, ".json"), result)
}
