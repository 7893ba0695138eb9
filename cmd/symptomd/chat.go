package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/khayyamnoor/simplechatbotapi/pkg/chat"
	"github.com/khayyamnoor/simplechatbotapi/pkg/config"
	"github.com/khayyamnoor/simplechatbotapi/pkg/validate"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the predictor locally",
		Long: `chat opens an interactive session against the predictor without
starting the HTTP server. Describe symptoms separated by commas;
they accumulate across messages the same way an API session does.

Commands inside the session:
  /history   show the conversation so far
  /clear     forget accumulated symptoms and history
  /quit      leave`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runChat(configPath)
		},
	}
	return cmd
}

func runChat(configPath string) error {
	if err := config.LoadDotenv(""); err != nil {
		return err
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// The REPL owns stdout; keep log noise down.
	logger := newLogger("warn")
	slog.SetDefault(logger)

	predictor := buildPredictor(cfg, logger)
	sess := chat.NewSession(uuid.NewString(), predictor, logger)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("Symptom checker. Describe your symptoms, separated by commas.")
	fmt.Println("Type /quit to leave, /history to review, /clear to start over.")

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("bye")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch input {
		case "/quit", "/exit":
			fmt.Println("bye")
			return nil
		case "/history":
			for _, turn := range sess.History() {
				fmt.Printf("%s: %s\n", turn.Role, turn.Content)
			}
			continue
		case "/clear":
			sess.Clear()
			fmt.Println("session cleared")
			continue
		}

		ok, cleaned, reason := validate.Message(input)
		if !ok {
			fmt.Println("! " + reason)
			continue
		}

		reply := sess.ProcessMessage(context.Background(), cleaned)
		if reply.IsEmergency {
			fmt.Println("!!! " + reply.Response)
		} else {
			fmt.Println("bot> " + reply.Response)
		}
		for _, p := range reply.Predictions {
			fmt.Printf("     %-24s %.0f%% (%s)\n", p.Disease, p.Confidence*100, p.Source)
		}
	}
}
