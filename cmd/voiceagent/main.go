// Command voiceagent is a minimal illustrative harness: it pipes raw
// 16-bit PCM from stdin through a Controller and prints the resulting
// event stream to stdout, the way a caller's agent loop would consume it.
// It is not a production client — no audio device, no LLM, no TTS.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lokutor-ai/voicecore/pkg/voicecore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using system environment variables")
	}

	apiKey := os.Getenv("STT_API_KEY")
	wsURL := os.Getenv("STT_WS_URL")

	lang := os.Getenv("VOICEAGENT_LANGUAGE")
	if lang == "" {
		lang = "en"
	}
	eouMode := voicecore.EOUAdaptive
	if m := os.Getenv("VOICEAGENT_EOU_MODE"); m != "" {
		eouMode = voicecore.EndOfUtteranceMode(m)
	}

	cfg := voicecore.DefaultConfig()
	cfg.Language = lang
	cfg.EndOfUtteranceMode = eouMode
	cfg.Logger = voicecore.NewZerologLogger(zerolog.New(os.Stderr).With().Timestamp().Logger())

	var transport voicecore.Transport
	var headers voicecore.HeaderProducer
	if wsURL != "" {
		if apiKey == "" {
			log.Fatal(voicecore.ErrMissingCredential)
		}
		transport = voicecore.NewWSTransport(wsURL)
		headers = func() map[string]string {
			return map[string]string{"Authorization": "Bearer " + apiKey}
		}
	} else {
		log.Println("STT_WS_URL not set; running against an in-process mock transport")
		mock := voicecore.NewMockTransport()
		// No server stands behind the mock, so queue the recognition_started
		// acknowledgement that Connect waits for.
		mock.Push(voicecore.Message{
			Kind:         voicecore.MsgRecognitionStarted,
			LanguagePack: voicecore.LanguagePack{Language: lang, WordDelimiter: " "},
		})
		transport = mock
	}

	controller, err := voicecore.NewController(cfg, transport, nil)
	if err != nil {
		log.Fatalf("voiceagent: bad configuration: %v", err)
	}

	controller.On(voicecore.EventRecognitionStarted, func(payload interface{}) {
		fmt.Println("[session] recognition started, session id", controller.SessionID())
	})
	controller.On(voicecore.EventAddInterimSegment, func(payload interface{}) {
		for _, seg := range payload.([]voicecore.SpeakerSegment) {
			fmt.Printf("[interim] %s: %s\n", seg.Speaker, seg.Text)
		}
	})
	controller.On(voicecore.EventAddSegment, func(payload interface{}) {
		for _, seg := range payload.([]voicecore.SpeakerSegment) {
			fmt.Printf("[final] %s: %s\n", seg.Speaker, seg.Text)
		}
	})
	controller.On(voicecore.EventSpeakerStarted, func(payload interface{}) {
		fmt.Println("[speaker_started]", payload)
	})
	controller.On(voicecore.EventSpeakerEnded, func(payload interface{}) {
		fmt.Println("[speaker_ended]", payload)
	})
	controller.On(voicecore.EventEndOfTurn, func(payload interface{}) {
		fmt.Println("[end_of_turn] turn", payload)
	})
	controller.On(voicecore.EventTTFBMetrics, func(payload interface{}) {
		fmt.Println("[ttfb_ms]", strconv.FormatFloat(payload.(float64), 'f', 1, 64))
	})
	controller.On(voicecore.EventError, func(payload interface{}) {
		fmt.Println("[error]", payload)
	})
	controller.On(voicecore.EventConnectionError, func(payload interface{}) {
		fmt.Println("[connection_error]", payload)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := controller.Connect(ctx, headers); err != nil {
		log.Fatalf("voiceagent: connect failed: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		reader := bufio.NewReaderSize(os.Stdin, 32*1024)
		chunk := make([]byte, 3200) // 100ms at 16kHz/16-bit mono
		for {
			n, err := reader.Read(chunk)
			if n > 0 {
				if sendErr := controller.SendAudio(ctx, chunk[:n]); sendErr != nil {
					fmt.Fprintln(os.Stderr, "voiceagent: send audio:", sendErr)
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	select {
	case <-sig:
	case <-done:
	}

	fmt.Println("\nshutting down...")
	if err := controller.Disconnect(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "voiceagent: disconnect:", err)
	}
}
