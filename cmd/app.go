package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/viper"

	"github.com/panic80/cb-sub000/pkg/chat"
	"github.com/panic80/cb-sub000/pkg/config"
	"github.com/panic80/cb-sub000/pkg/controllers"
	"github.com/panic80/cb-sub000/pkg/logger"
	"github.com/panic80/cb-sub000/pkg/render"
	"github.com/panic80/cb-sub000/pkg/stream"
)

// AppConfig contains all configuration needed to run the application
type AppConfig struct {
	Config          *config.Config
	DirectPrompt    string
	ContinueHistory bool
}

// RunApplication is the main entry point for the application logic
func RunApplication(appCfg *AppConfig) error {
	logger.Info("Application starting")

	history, err := chat.NewHistory(config.BuildSettingsPath("chat_history.json"))
	if err != nil {
		return fmt.Errorf("failed to create history: %w", err)
	}

	if !appCfg.ContinueHistory {
		if err := history.Clear(); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
	}

	cfg := appCfg.Config
	client := stream.NewClient(cfg.Server.URL)
	controller := controllers.NewChatController(client, chat.NewTranscript(), history, controllers.Options{
		Model:         cfg.Chat.Model,
		Provider:      cfg.Chat.Provider,
		UseRAG:        cfg.Chat.UseRAG && !viper.GetBool("no_rag"),
		HistoryWindow: cfg.Chat.HistoryWindow,
	})
	renderer := render.New()

	if appCfg.DirectPrompt != "" {
		return runTurn(context.Background(), controller, renderer, appCfg.DirectPrompt)
	}

	return runInteractive(controller, renderer)
}

// runInteractive reads prompts from stdin until EOF or /quit. Ctrl-C aborts
// the in-flight answer without killing the session.
func runInteractive(controller *controllers.ChatController, renderer *render.Renderer) error {
	fmt.Println("Type a question, /regen to retry the last one, /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/regen":
			if err := runWithInterrupt(controller, renderer, ""); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		default:
			if err := runWithInterrupt(controller, renderer, line); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
}

func runWithInterrupt(controller *controllers.ChatController, renderer *render.Renderer, text string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if text == "" {
		return regenerateTurn(ctx, controller, renderer)
	}
	return runTurn(ctx, controller, renderer, text)
}

func regenerateTurn(ctx context.Context, controller *controllers.ChatController, renderer *render.Renderer) error {
	updates, err := controller.Regenerate(ctx)
	if err != nil {
		return err
	}
	drainUpdates(updates, renderer, os.Stdout)
	return nil
}

func runTurn(ctx context.Context, controller *controllers.ChatController, renderer *render.Renderer, text string) error {
	updates, err := controller.StartStreaming(ctx, text)
	if err != nil {
		return err
	}
	drainUpdates(updates, renderer, os.Stdout)
	return nil
}

// drainUpdates prints streamed content as it arrives: tokens are appended
// immediately on receipt. Once a formatted answer completes, the finalized
// body is reprinted with its code fences highlighted, then sources and
// follow-ups.
func drainUpdates(updates <-chan controllers.Update, renderer *render.Renderer, out io.Writer) {
	printed := 0
	labeled := false

	for update := range updates {
		switch update.Type {
		case controllers.SnapshotUpdated:
			if !labeled {
				fmt.Fprint(out, renderer.Label(update.Message)+": ")
				labeled = true
			}
			if len(update.Message.Content) > printed {
				fmt.Fprint(out, update.Message.Content[printed:])
				printed = len(update.Message.Content)
			}

		case controllers.MessageComplete:
			fmt.Fprintln(out)
			if update.Message.IsFormatted {
				fmt.Fprintln(out, renderer.Message(update.Message))
			}
			fmt.Fprint(out, renderer.Sources(update.Message))
			fmt.Fprint(out, renderer.FollowUps(update.Message))

		case controllers.MessageFailed:
			if labeled {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, renderer.Label(update.Message)+": "+renderer.Message(update.Message))

		case controllers.StreamAborted:
			// Deliberate, silent termination. Just restore the prompt line.
			if labeled {
				fmt.Fprintln(out)
			}
		}
	}
}
