package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewSessionCmd создаёт группу команд для работы с сессиями.
func NewSessionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved sessions",
	}

	cmd.AddCommand(
		newSessionSaveCmd(clientFn, outputFn),
		newSessionShowCmd(clientFn, outputFn),
		newSessionListCmd(clientFn, outputFn),
		newSessionDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newSessionSaveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var prompts []string
	var promptsFile string
	var assetPath string

	cmd := &cobra.Command{
		Use:   "save ID",
		Short: "Save a session (overwrites existing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := SaveSessionRequest{Prompts: prompts}

			if promptsFile != "" {
				filePrompts, err := readPromptsFile(promptsFile)
				if err != nil {
					return err
				}
				req.Prompts = append(req.Prompts, filePrompts...)
			}
			if len(req.Prompts) == 0 {
				return fmt.Errorf("at least one prompt is required")
			}

			if assetPath != "" {
				asset, err := readAsset(assetPath)
				if err != nil {
					return err
				}
				req.Asset = asset
			}

			session, err := client.SaveSession(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Session saved: %s (%d prompts)", session.ID, len(session.Prompts)))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&prompts, "prompt", nil, "Prompt text (repeatable)")
	cmd.Flags().StringVar(&promptsFile, "prompts-file", "", "File with one prompt per line")
	cmd.Flags().StringVar(&assetPath, "asset", "", "Reference image file")

	return cmd
}

func newSessionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show session details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := clientFn().GetSession(args[0])
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"ID", "PROMPTS", "HAS_ASSET", "UPDATED"},
				[][]string{{
					session.ID,
					strings.Join(session.Prompts, " | "),
					strconv.FormatBool(session.HasAsset),
					session.UpdatedAt,
				}},
				session,
			)
			return nil
		},
	}
}

func newSessionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := clientFn().ListSessions()
			if err != nil {
				return err
			}

			headers := []string{"ID", "PROMPTS", "UPDATED"}
			rows := make([][]string, len(sessions))
			for i, s := range sessions {
				rows[i] = []string{s.ID, strconv.Itoa(len(s.Prompts)), s.UpdatedAt}
			}

			outputFn().Print(headers, rows, sessions)
			return nil
		},
	}
}

func newSessionDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteSession(args[0]); err != nil {
				return err
			}
			outputFn().Success("Session deleted: " + args[0])
			return nil
		},
	}
}
