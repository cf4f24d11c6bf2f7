package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDownloadCmd создаёт команду постановки скачиваний.
func NewDownloadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var prefix string
	var delayMs int

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Enqueue the last completed artifacts for download",
		RunE: func(cmd *cobra.Command, args []string) error {
			accepted, err := clientFn().EnqueueDownloads(EnqueueDownloadsRequest{
				Prefix:  prefix,
				DelayMs: delayMs,
			})
			if err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Command accepted: %s", accepted.Command))
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "story", "Filename prefix")
	cmd.Flags().IntVar(&delayMs, "delay-ms", 0, "Delay between downloads")

	return cmd
}
