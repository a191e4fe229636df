package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/lipi/internal/bot"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
)

// botCmd represents the bot command.
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Long: `Answer photos sent to a Telegram bot with their transcript.

Chats pick their language with /language english or /language nepali.

Examples:
  LIPI_TELEGRAM_TOKEN=123:abc lipi bot`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, []flagBinding{
			{"telegram.token", "token"},
			{"telegram.default_language", "language"},
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if cfg.Telegram.Token == "" {
			return errors.New("telegram.token is required (flag --token or LIPI_TELEGRAM_TOKEN)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := newServices(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer svc.close()

		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("failed to connect to telegram: %w", err)
		}
		api.Debug = cfg.Telegram.Debug

		return bot.New(api, svc.pipeline, cfg.ToBotConfig()).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
	botCmd.Flags().String("token", "", "Telegram bot token")
	botCmd.Flags().String("language", "english", "language for chats that did not choose one")
}
