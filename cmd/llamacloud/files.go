package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	client "github.com/hsn0918/llamacloud-client"
	"github.com/hsn0918/llamacloud-client/batch"
)

func newFilesCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Upload and download files",
	}
	cmd.AddCommand(newFilesUploadCmd(opts))
	cmd.AddCommand(newFilesDownloadCmd(opts))
	return cmd
}

func newFilesUploadCmd(opts *cliOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "upload <file|dir|glob>...",
		Short: "Upload files and print their ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectInputs(args, nil)
			if err != nil {
				return opts.recordFailure(args[0], err)
			}
			cli, err := opts.client()
			if err != nil {
				return err
			}

			outcomes := batch.Run(cmd.Context(), files, func(ctx context.Context, path string) (*client.File, error) {
				return cli.UploadFile(ctx, path, "")
			}, batch.WithConcurrency(opts.settings.Concurrency))

			for _, out := range outcomes {
				if !out.OK() {
					_ = opts.recordFailure(out.Item, out.Err)
					continue
				}
				opts.logger.Info("uploaded", zap.String("file", out.Item), zap.String("file_id", out.Value.ID))
			}
			if err := printJSON(cmd.OutOrStdout(), output, batch.Values(outcomes)); err != nil {
				return err
			}
			return batch.Err(outcomes)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Optional path to save the uploaded file records")
	return cmd
}

func newFilesDownloadCmd(opts *cliOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download the content of a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fileID := args[0]

			if output == "" {
				meta, err := cli.GetFile(ctx, fileID)
				if err != nil {
					return opts.recordFailure(fileID, err)
				}
				output = meta.Name
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create file: %w", err)
			}
			defer f.Close()

			if err := cli.ReadFileContentTo(ctx, fileID, f); err != nil {
				return opts.recordFailure(fileID, err)
			}
			opts.logger.Info("downloaded", zap.String("file_id", fileID), zap.String("path", output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Download path (defaults to the stored file name)")
	return cmd
}
