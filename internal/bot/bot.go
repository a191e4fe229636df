// Package bot is a Telegram front end for the OCR pipeline.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/script"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageRunes is Telegram's limit for one text message.
const maxMessageRunes = 4096

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// OCR runs the pipeline on one image.
type OCR interface {
	Run(ctx context.Context, data []byte, lang script.Language) (*pipeline.Result, error)
	Languages() []script.Language
}

// Config tunes the bot.
type Config struct {
	DefaultLanguage script.Language
	MaxFileMB       int64
	Timeout         time.Duration
	PollTimeout     int // seconds
}

// Bot answers photos with their transcript. The language is chosen per chat.
type Bot struct {
	api     API
	ocr     OCR
	cfg     Config
	client  *http.Client
	mu      sync.RWMutex
	chatLng map[int64]script.Language
}

// New wires a bot.
func New(api API, ocr OCR, cfg Config) *Bot {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = script.English
	}
	if cfg.MaxFileMB <= 0 {
		cfg.MaxFileMB = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	return &Bot{
		api:     api,
		ocr:     ocr,
		cfg:     cfg,
		client:  &http.Client{Timeout: 60 * time.Second},
		chatLng: make(map[int64]script.Language),
	}
}

// Run long-polls for updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	updates := b.api.GetUpdatesChan(u)
	slog.Info("Telegram bot started", "default_language", string(b.cfg.DefaultLanguage))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			slog.Info("Telegram bot stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return errors.New("updates channel closed")
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	cid := msg.Chat.ID
	switch {
	case msg.IsCommand():
		b.handleCommand(msg)
	case len(msg.Photo) > 0:
		// Telegram lists sizes ascending; the last one is the original.
		b.transcribe(ctx, msg, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		b.transcribe(ctx, msg, msg.Document.FileID)
	default:
		b.send(cid, 0, "Send me a photo of handwritten text. "+b.usage())
	}
}

func (b *Bot) usage() string {
	names := make([]string, 0, len(b.ocr.Languages()))
	for _, l := range b.ocr.Languages() {
		names = append(names, string(l))
	}
	return "Choose the script with /language " + strings.Join(names, "|") + "."
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		b.send(cid, 0, fmt.Sprintf("Send me a photo of handwritten text and I will transcribe it.\nCurrent language: %s. %s",
			b.language(cid), b.usage()))
	case "language":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			b.send(cid, 0, fmt.Sprintf("Current language: %s. %s", b.language(cid), b.usage()))
			return
		}
		lang := script.ParseLanguage(arg)
		if !slices.Contains(b.ocr.Languages(), lang) {
			b.send(cid, 0, fmt.Sprintf("Unknown language %q. %s", arg, b.usage()))
			return
		}
		b.mu.Lock()
		b.chatLng[cid] = lang
		b.mu.Unlock()
		b.send(cid, 0, "Language set to "+string(lang)+".")
	default:
		b.send(cid, 0, "Unknown command. "+b.usage())
	}
}

func (b *Bot) language(chatID int64) script.Language {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if l, ok := b.chatLng[chatID]; ok {
		return l
	}
	return b.cfg.DefaultLanguage
}

func (b *Bot) transcribe(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	cid := msg.Chat.ID
	lang := b.language(cid)
	logger := slog.With("chat", cid, "language", string(lang))

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	data, err := b.download(ctx, fileID)
	if err != nil {
		logger.Error("Failed to download photo", "error", err)
		b.send(cid, msg.MessageID, "I could not download that file, please try again.")
		return
	}

	res, err := b.ocr.Run(ctx, data, lang)
	if err != nil {
		logger.Warn("OCR failed", "error", err)
		b.send(cid, msg.MessageID, failureText(err))
		return
	}
	if !res.HasText() {
		b.send(cid, msg.MessageID, "No text found in this image.")
		return
	}
	for _, chunk := range splitMessage(res.Text, maxMessageRunes) {
		b.send(cid, msg.MessageID, chunk)
	}
}

func failureText(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrImageDecode):
		return "I could not read that image. Please send a JPEG or PNG photo."
	case errors.Is(err, pipeline.ErrDetection):
		return "Text detection is unavailable right now, please try again later."
	case errors.Is(err, pipeline.ErrRecognizerUnavailable):
		return "Handwriting recognition is unavailable right now, please try again later."
	case errors.Is(err, script.ErrUnsupportedLanguage):
		return "That language is not supported."
	case errors.Is(err, context.DeadlineExceeded):
		return "Processing took too long, please try a smaller image."
	default:
		return "Processing failed, please try again."
	}
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	limit := b.cfg.MaxFileMB * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file larger than %d MB", b.cfg.MaxFileMB)
	}
	return data, nil
}

func (b *Bot) send(chatID int64, replyTo int, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyToMessageID = replyTo
	if _, err := b.api.Send(m); err != nil {
		slog.Error("Failed to send message", "chat", chatID, "error", err)
	}
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks.
func splitMessage(text string, limit int) []string {
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
