package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	client "github.com/hsn0918/llamacloud-client"
)

// rulesFile is the on-disk form of classification rules.
type rulesFile struct {
	Rules   []client.ClassifierRule       `yaml:"rules"`
	Parsing *client.ClassifyParsingConfig `yaml:"parsing"`
}

type classifyOptions struct {
	opts         *cliOptions
	rulesPath    string
	raiseOnError bool
	output       string
	rules        rulesFile
	files        []string
}

func newClassifyCmd(opts *cliOptions) *cobra.Command {
	co := &classifyOptions{opts: opts}

	cmd := &cobra.Command{
		Use:   "classify <file|dir|glob>...",
		Short: "Classify documents by type using natural-language rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := co.complete(args); err != nil {
				return co.opts.recordFailure(co.rulesPath, err)
			}
			return co.run(cmd)
		},
	}

	cmd.Flags().StringVar(&co.rulesPath, "rules", "", "YAML file with rules: [{type, description}] and optional parsing settings")
	cmd.Flags().BoolVar(&co.raiseOnError, "raise-on-error", true, "Fail when the classify job ends in ERROR")
	cmd.Flags().StringVarP(&co.output, "output", "o", "", "Optional path to save the results JSON")

	return cmd
}

func loadRules(path string) (rulesFile, error) {
	var rf rulesFile
	if path == "" {
		return rf, errors.New("flag --rules is required")
	}
	if err := readDocument(path, &rf); err != nil {
		return rf, err
	}
	if len(rf.Rules) == 0 {
		return rf, fmt.Errorf("%s: %w", path, client.ErrNoRules)
	}
	for i, r := range rf.Rules {
		if r.Type == "" || r.Description == "" {
			return rf, fmt.Errorf("%s: rule %d needs both type and description", path, i)
		}
	}
	return rf, nil
}

func (o *classifyOptions) complete(args []string) error {
	rules, err := loadRules(o.rulesPath)
	if err != nil {
		return err
	}
	o.rules = rules

	files, err := collectInputs(args, documentExts)
	if err != nil {
		return err
	}
	o.files = files
	return nil
}

func (o *classifyOptions) run(cmd *cobra.Command) error {
	cli, err := o.opts.client()
	if err != nil {
		return err
	}

	result, err := cli.ClassifyFilePaths(cmd.Context(), o.rules.Rules, o.files, o.rules.Parsing, o.raiseOnError)
	if result != nil {
		for _, failed := range result.FailedUploads {
			_ = o.opts.recordFailure(failed.Path, failed.Err)
		}
	}
	if err != nil {
		return o.opts.recordFailure(o.rulesPath, err)
	}

	for _, item := range result.Items {
		fields := []zap.Field{zap.String("file", item.Path)}
		if item.Classification != nil && item.Classification.Result != nil {
			fields = append(fields,
				zap.String("type", item.Classification.Result.Type),
				zap.Float64("confidence", item.Classification.Result.Confidence),
			)
		}
		o.opts.logger.Info("classified", fields...)
	}

	return printJSON(cmd.OutOrStdout(), o.output, result)
}
