// Command ema-tutor is a terminal voice chat with the tutor.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	orchestration "github.com/koscakluka/ema-tutor/core"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/audio/miniaudio"
	"github.com/koscakluka/ema-tutor/core/audio/portaudio"
	"github.com/koscakluka/ema-tutor/core/audio/wavfile"
	"github.com/koscakluka/ema-tutor/core/chat"
	"github.com/koscakluka/ema-tutor/core/quiz"
	"github.com/koscakluka/ema-tutor/core/screening"
	"github.com/koscakluka/ema-tutor/core/sessions"
	"github.com/koscakluka/ema-tutor/core/sessions/redis"
	stt "github.com/koscakluka/ema-tutor/core/speechtotext/deepgram"
	tts "github.com/koscakluka/ema-tutor/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-tutor/internal/config"
)

const portAudioBufferSize = 1024

func main() {
	var (
		configPath string
		inputPath  string
		backend    string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	flag.StringVar(&inputPath, "input", "", "WAV file to use as the microphone")
	flag.StringVar(&backend, "audio", "miniaudio", "Audio backend: miniaudio or portaudio")
	flag.Parse()

	if err := run(configPath, inputPath, backend); err != nil {
		fmt.Fprintln(os.Stderr, "ema-tutor:", err)
		os.Exit(1)
	}
}

type audioDevice interface {
	audio.Input
	audio.Output
	Close()
}

func openDevice(backend string) (audioDevice, error) {
	switch backend {
	case "miniaudio":
		return miniaudio.NewClient()
	case "portaudio":
		return portaudio.NewClient(portAudioBufferSize)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}

func openSessionStore(ctx context.Context, conf config.Sessions) (sessions.Store, func(), error) {
	if conf.Backend != "redis" {
		return sessions.NewMemoryStore(), func() {}, nil
	}

	store, err := redis.Dial(ctx, conf.RedisAddr, os.Getenv("REDIS_PASSWORD"), conf.RedisDB, redis.WithTTL(conf.TTL))
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("Warning: failed to close session store: %v", err)
		}
	}, nil
}

func run(configPath, inputPath, backend string) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device, err := openDevice(backend)
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer device.Close()

	var input audio.Input = device
	if inputPath != "" {
		source, err := wavfile.Open(inputPath, wavfile.WithRealtime(true))
		if err != nil {
			return err
		}
		input = source
	}

	store, closeStore, err := openSessionStore(ctx, conf.Sessions)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer closeStore()

	transcriber := stt.NewTranscriptionClient(conf.Deepgram.APIKey, input,
		stt.WithModel(conf.Deepgram.Model),
		stt.WithLanguage(conf.Deepgram.Language),
	)
	defer transcriber.Close()

	speaker, err := tts.NewTextToSpeechClient(conf.Deepgram.APIKey, device, tts.Voice(conf.Deepgram.Voice))
	if err != nil {
		return fmt.Errorf("failed to create text to speech client: %w", err)
	}

	chatOptions := []chat.ClientOption{chat.WithToken(conf.Chat.Token)}
	if conf.Chat.QueryEncoding {
		chatOptions = append(chatOptions, chat.WithQueryEncoding())
	}
	history := chat.NewHistory()
	opts := []orchestration.OrchestratorOption{
		orchestration.WithSpeechToTextClient(transcriber),
		orchestration.WithTextToSpeechClient(speaker),
		orchestration.WithChatClient(chat.NewClient(conf.Chat.Endpoint, chatOptions...),
			chat.WithHistory(history),
			chat.WithSessionStore(store, conf.Sessions.Key),
			chat.WithQuizOpenDelay(conf.Chat.QuizOpenDelay),
			chat.WithRetryPolicy(chat.RetryPolicy{
				MaxAttempts: conf.Chat.Retry.MaxAttempts,
				BaseDelay:   conf.Chat.Retry.BaseDelay,
				MaxDelay:    conf.Chat.Retry.MaxDelay,
			}),
		),
		orchestration.WithQuietPeriod(conf.Voice.QuietPeriod),
		orchestration.WithResumeDelay(conf.Voice.ResumeDelay),
		orchestration.WithSimilarityThreshold(conf.Voice.SimilarityThreshold),
	}
	if conf.Screening.Enabled {
		opts = append(opts, orchestration.WithUtteranceScreener(screening.NewScreener(conf.Screening.APIKey,
			screening.WithModel(conf.Screening.Model),
			screening.WithHistory(history, 4),
		)))
	}
	orchestrator := orchestration.NewOrchestrator(opts...)
	defer orchestrator.Close()

	model := newModel(ctx, orchestrator)
	program := tea.NewProgram(model, tea.WithAltScreen())
	send := func(msg tea.Msg) { program.Send(msg) }

	orchestrator.Orchestrate(ctx,
		orchestration.WithTranscriptPreviewCallback(func(preview string) { send(previewMsg(preview)) }),
		orchestration.WithMessageCallback(func(message chat.Message) { send(messageMsg(message)) }),
		orchestration.WithMessageAmendedCallback(func(message chat.Message) { send(messageMsg(message)) }),
		orchestration.WithSessionCallback(func(_, subject string) { send(subjectMsg(subject)) }),
		orchestration.WithBadgesCallback(func(badges []string) { send(badgesMsg(badges)) }),
		orchestration.WithTurnStateCallback(func(_, to orchestration.TurnState) { send(turnStateMsg(to)) }),
		orchestration.WithSpeakingStartedCallback(func(text string) { send(speakingMsg(text)) }),
		orchestration.WithWordBoundaryCallback(func(charIndex int) { send(wordBoundaryMsg(charIndex)) }),
		orchestration.WithQuizOpenedCallback(func(q quiz.Quiz) { send(quizOpenedMsg{quiz: q}) }),
		orchestration.WithQuizCommandCallback(func(_ quiz.Command, index int) { send(quizIndexMsg(index)) }),
		orchestration.WithQuizSubmittedCallback(func(answers []string, score quiz.Score) {
			send(quizSubmittedMsg{answers: answers, score: score})
		}),
		orchestration.WithQuizClosedCallback(func() { send(quizClosedMsg{}) }),
		orchestration.WithQuizUnavailableCallback(func(err error) { send(errMsg{err: err}) }),
		orchestration.WithErrorCallback(func(err error) { send(errMsg{err: err}) }),
	)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run terminal UI: %w", err)
	}
	return nil
}
