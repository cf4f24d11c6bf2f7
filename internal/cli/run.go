package cli

import (
	"bufio"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления прогоном.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage the generation run",
	}

	cmd.AddCommand(
		newRunStartCmd(clientFn, outputFn),
		newRunPauseCmd(clientFn, outputFn),
		newRunResumeCmd(clientFn, outputFn),
		newRunStopCmd(clientFn, outputFn),
		newRunStatusCmd(clientFn, outputFn),
		newRunArtifactsCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var prompts []string
	var promptsFile string
	var assetPath string
	var sessionID string
	var timeoutMs, itemDelayMs, maxAttempts int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a generation run",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := StartRunRequest{
				SessionID: sessionID,
				Prompts:   prompts,
			}

			if promptsFile != "" {
				filePrompts, err := readPromptsFile(promptsFile)
				if err != nil {
					return err
				}
				req.Prompts = append(req.Prompts, filePrompts...)
			}

			if assetPath != "" {
				asset, err := readAsset(assetPath)
				if err != nil {
					return err
				}
				req.Asset = asset
			}

			settings := map[string]any{}
			if timeoutMs > 0 {
				settings["timeout_ms"] = timeoutMs
			}
			if itemDelayMs > 0 {
				settings["item_delay_ms"] = itemDelayMs
			}
			if maxAttempts > 0 {
				settings["max_attempts"] = maxAttempts
			}
			if len(settings) > 0 {
				req.Settings = settings
			}

			accepted, err := client.StartRun(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %d items", accepted.Items))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&prompts, "prompt", nil, "Prompt text (repeatable)")
	cmd.Flags().StringVar(&promptsFile, "prompts-file", "", "File with one prompt per line")
	cmd.Flags().StringVar(&assetPath, "asset", "", "Reference image file")
	cmd.Flags().StringVar(&sessionID, "session", "", "Saved session ID to start from")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "Per-item generation timeout")
	cmd.Flags().IntVar(&itemDelayMs, "item-delay-ms", 0, "Delay between items")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Attempts per item")

	return cmd
}

func newRunPauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := clientFn().PauseRun(); err != nil {
				return err
			}
			outputFn().Success("Run paused")
			return nil
		},
	}
}

func newRunResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume the paused run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := clientFn().ResumeRun(); err != nil {
				return err
			}
			outputFn().Success("Run resumed")
			return nil
		},
	}
}

func newRunStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := clientFn().StopRun(); err != nil {
				return err
			}
			outputFn().Success("Run stop requested")
			return nil
		},
	}
}

func newRunStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show run status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := clientFn().GetStatus()
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"STATUS", "PROGRESS", "PROMPT", "LAST_ERROR", "UPDATED"},
				[][]string{{
					status.Status,
					fmt.Sprintf("%d/%d", status.Current, status.Total),
					status.Prompt,
					status.LastError,
					status.UpdatedAt,
				}},
				status,
			)
			return nil
		},
	}
}

func newRunArtifactsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts",
		Short: "List artifacts of the last completed run",
		RunE: func(cmd *cobra.Command, args []string) error {
			artifacts, err := clientFn().GetArtifacts()
			if err != nil {
				return err
			}

			headers := []string{"POSITION", "PROMPT", "URL"}
			rows := make([][]string, len(artifacts))
			for i, a := range artifacts {
				rows[i] = []string{strconv.Itoa(a.Position), a.Prompt, a.URL}
			}

			outputFn().Print(headers, rows, artifacts)
			return nil
		},
	}
}

// readPromptsFile читает промпты построчно, пропуская пустые строки.
func readPromptsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompts file: %w", err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	return prompts, nil
}

// readAsset читает референсное изображение, mime выводится из расширения.
func readAsset(path string) (*AssetRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &AssetRequest{Data: data, Mime: mimeType}, nil
}
