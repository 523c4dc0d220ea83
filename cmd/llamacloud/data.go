package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	client "github.com/hsn0918/llamacloud-client"
	"github.com/hsn0918/llamacloud-client/agentdata"
)

type record = agentdata.TypedAgentData[map[string]any]

type dataOptions struct {
	opts       *cliOptions
	deployment string
	collection string
}

func newDataCmd(opts *cliOptions) *cobra.Command {
	do := &dataOptions{opts: opts}

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect and manage agent data records",
	}
	cmd.PersistentFlags().StringVar(&do.deployment, "deployment", "", "Deployment name (or set "+agentdata.EnvDeploymentName+")")
	cmd.PersistentFlags().StringVar(&do.collection, "collection", agentdata.DefaultCollection, "Collection name")

	cmd.AddCommand(do.getCmd())
	cmd.AddCommand(do.deleteCmd())
	cmd.AddCommand(do.searchCmd())
	cmd.AddCommand(do.exportCmd())
	return cmd
}

func (o *dataOptions) store() (*agentdata.Client[map[string]any], error) {
	cli, err := o.opts.client()
	if err != nil {
		return nil, err
	}
	return agentdata.New[map[string]any](cli, o.deployment, nil,
		agentdata.WithCollection(o.collection),
		agentdata.WithLogger(o.opts.logger.Named("agentdata")),
	)
}

func (o *dataOptions) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <item-id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := o.store()
			if err != nil {
				return err
			}
			item, err := store.UntypedGet(cmd.Context(), args[0])
			if err != nil {
				return o.opts.recordFailure(args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), "", item)
		},
	}
}

func (o *dataOptions) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item-id>...",
		Short: "Delete records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := o.store()
			if err != nil {
				return err
			}
			var failed int
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					_ = o.opts.recordFailure(id, err)
					failed++
					continue
				}
				o.opts.logger.Info("deleted", zap.String("id", id))
			}
			if failed > 0 {
				return fmt.Errorf("failed to delete %d of %d records", failed, len(args))
			}
			return nil
		},
	}
}

type queryFlags struct {
	filter   string
	orderBy  string
	pageSize int
}

func (q *queryFlags) add(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.filter, "filter", "", `Filter as YAML or JSON, e.g. '{age: {gte: 18}}'`)
	cmd.Flags().StringVar(&q.orderBy, "order-by", "", "Sort expression, e.g. 'created_at desc'")
	cmd.Flags().IntVar(&q.pageSize, "page-size", 0, "Records per page (server default when 0)")
}

func (q *queryFlags) options() (agentdata.SearchOptions, error) {
	filter, err := parseFilter(q.filter)
	if err != nil {
		return agentdata.SearchOptions{}, err
	}
	return agentdata.SearchOptions{Filter: filter, OrderBy: q.orderBy, PageSize: q.pageSize}, nil
}

// parseFilter decodes a filter expression and rejects unknown operators up front.
func parseFilter(expr string) (client.Filter, error) {
	if expr == "" {
		return nil, nil
	}
	var filter client.Filter
	if err := yaml.Unmarshal([]byte(expr), &filter); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	if err := client.ValidateFilter(filter); err != nil {
		return nil, err
	}
	return filter, nil
}

func (o *dataOptions) searchCmd() *cobra.Command {
	var (
		q         queryFlags
		pageToken string
		total     bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Print one page of matching records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := q.options()
			if err != nil {
				return err
			}
			opts.PageToken = pageToken
			opts.IncludeTotal = total

			store, err := o.store()
			if err != nil {
				return err
			}
			page, err := store.UntypedSearch(cmd.Context(), opts)
			if err != nil {
				return o.opts.recordFailure(o.collection, err)
			}
			return printJSON(cmd.OutOrStdout(), "", page)
		},
	}

	cmd.ValidArgsFunction = flagsOnly
	q.add(cmd)
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Continue from a previous page")
	cmd.Flags().BoolVar(&total, "total", false, "Include the total match count")
	return cmd
}

func (o *dataOptions) exportCmd() *cobra.Command {
	var (
		q      queryFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all matching records to an .xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := q.options()
			if err != nil {
				return err
			}
			store, err := o.store()
			if err != nil {
				return err
			}

			var items []record
			for {
				page, err := store.UntypedSearch(cmd.Context(), opts)
				if err != nil {
					return o.opts.recordFailure(o.collection, err)
				}
				items = append(items, page.Items...)
				if !page.HasMore {
					break
				}
				opts.PageToken = page.NextPageToken
			}

			if err := writeRecordsXLSX(output, o.collection, items); err != nil {
				return err
			}
			o.opts.logger.Info("exported", zap.Int("rows", len(items)), zap.String("path", output))
			return nil
		},
	}

	cmd.ValidArgsFunction = flagsOnly
	q.add(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "agent-data.xlsx", "Workbook path")
	return cmd
}
