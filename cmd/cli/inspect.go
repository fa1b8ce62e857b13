package cli

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	api "sage-backend/cmd/api"
	"sage-backend/internal/mail/usecase"
	"sage-backend/pkg/logger"

	"github.com/spf13/cobra"
)

var inspectToken string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect mailbox data through the configured provider",
}

var inspectThreadCmd = &cobra.Command{
	Use:   "thread <threadId>",
	Short: "Load a thread and print its normalized messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		backend, err := api.NewMailBackend(cfg, log)
		if err != nil {
			return err
		}
		threads := usecase.NewThreadUsecase(backend.Source, nil, cfg.RenderConcurrency, cfg.InboxLimit, logger.Component(log, "ThreadService"))

		thread, err := threads.GetThread(cmd.Context(), inspectToken, args[0])
		if err != nil {
			return err
		}

		type row struct {
			ID         string    `json:"id"`
			Date       time.Time `json:"date"`
			From       string    `json:"from"`
			Expanded   bool      `json:"expanded"`
			BodyLength int       `json:"bodyLength"`
		}
		out := struct {
			ThreadID string `json:"threadId"`
			Subject  string `json:"subject"`
			Messages []row  `json:"messages"`
		}{ThreadID: thread.ID, Subject: thread.Subject}
		for _, m := range thread.Messages {
			out.Messages = append(out.Messages, row{
				ID:         m.ID,
				Date:       m.CreatedTime,
				From:       m.From.Address,
				Expanded:   m.Expanded,
				BodyLength: len(m.HTMLBody),
			})
		}
		return printJSON(out)
	},
}

var inspectMessageCmd = &cobra.Command{
	Use:   "message <messageId>",
	Short: "Report which body shapes a message record carries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		backend, err := api.NewMailBackend(cfg, log)
		if err != nil {
			return err
		}
		if backend.Inspector == nil {
			return errors.New("message inspection requires the aurinko provider")
		}
		shape, err := backend.Inspector.InspectMessage(cmd.Context(), inspectToken, args[0])
		if err != nil {
			return err
		}
		return printJSON(shape)
	},
}

func init() {
	inspectCmd.PersistentFlags().StringVar(&inspectToken, "token", os.Getenv("MAIL_ACCESS_TOKEN"), "mail provider access token")
	inspectCmd.AddCommand(inspectThreadCmd, inspectMessageCmd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
