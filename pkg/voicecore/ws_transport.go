package voicecore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WSTransport implements Transport over a live WebSocket connection to an
// STT service, grounded on the teacher's LokutorTTS WebSocket client
// (pkg/providers/tts/lokutor.go): dial with websocket.Dial, write control
// frames with wsjson.Write, write audio as a raw binary frame, and read
// both kinds off a single conn.Read loop tagged by message type.
type WSTransport struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSTransport builds a transport dialing wsURL (a "wss://..." STT
// endpoint) on Connect.
func NewWSTransport(wsURL string) *WSTransport {
	return &WSTransport{url: wsURL}
}

func (t *WSTransport) Connect(ctx context.Context, headers HeaderProducer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	u, err := url.Parse(t.url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var opts *websocket.DialOptions
	if headers != nil {
		hdr := make(map[string][]string)
		for k, v := range headers() {
			hdr[k] = []string{v}
		}
		opts = &websocket.DialOptions{HTTPHeader: toHTTPHeader(hdr)}
	}

	conn, _, err := websocket.Dial(ctx, u.String(), opts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	t.conn = conn
	return nil
}

func (t *WSTransport) SendControl(ctx context.Context, kind MessageKind, payload interface{}) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame := map[string]interface{}{"message": string(kind)}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err == nil {
			var asMap map[string]interface{}
			if json.Unmarshal(body, &asMap) == nil {
				for k, v := range asMap {
					frame[k] = v
				}
			}
		}
	}

	if err := wsjson.Write(ctx, conn, frame); err != nil {
		t.mu.Lock()
		t.closeLocked(websocket.StatusAbnormalClosure, "control write failed")
		t.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}

func (t *WSTransport) SendAudio(ctx context.Context, seq uint64, data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		t.mu.Lock()
		t.closeLocked(websocket.StatusAbnormalClosure, "audio write failed")
		t.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}

func (t *WSTransport) Receive(ctx context.Context) (Message, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return Message{}, ErrNotConnected
	}

	msgType, payload, err := conn.Read(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}

	switch msgType {
	case websocket.MessageText:
		return parseControlFrame(payload)
	case websocket.MessageBinary:
		return Message{}, fmt.Errorf("%w: unexpected binary frame from STT service", ErrMalformedPayload)
	default:
		return Message{}, ErrUnknownMessage
	}
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked(websocket.StatusNormalClosure, "")
}

func (t *WSTransport) closeLocked(code websocket.StatusCode, reason string) error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close(code, reason)
	t.conn = nil
	return err
}

func toHTTPHeader(m map[string][]string) map[string][]string { return m }

// parseControlFrame decodes a raw JSON control frame into the tagged
// Message variant, using the required "message" discriminator.
func parseControlFrame(payload []byte) (Message, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	kindStr, _ := raw["message"].(string)
	if kindStr == "" {
		return Message{}, ErrUnknownMessage
	}

	msg := Message{Kind: MessageKind(kindStr), Raw: raw}

	switch msg.Kind {
	case MsgRecognitionStarted:
		msg.SessionID, _ = raw["id"].(string)
		if lp, ok := raw["language_pack"].(map[string]interface{}); ok {
			msg.LanguagePack.Language, _ = lp["language_code"].(string)
			msg.LanguagePack.WordDelimiter, _ = lp["word_delimiter"].(string)
		}
		if msg.LanguagePack.WordDelimiter == "" {
			msg.LanguagePack.WordDelimiter = " "
		}
	case MsgAddPartialTranscript, MsgAddTranscript:
		msg.Results = parseResults(raw)
	case MsgError, MsgWarning, MsgInfo:
		msg.Text, _ = raw["reason"].(string)
		if msg.Text == "" {
			msg.Text, _ = raw["text"].(string)
		}
	case MsgSpeakersResult:
		if list, ok := raw["speakers"].([]interface{}); ok {
			for _, item := range list {
				if m, ok := item.(map[string]interface{}); ok {
					label, _ := m["label"].(string)
					msg.Speakers = append(msg.Speakers, SpeakerEnrolment{Label: label})
				}
			}
		}
	}

	return msg, nil
}

func parseResults(raw map[string]interface{}) []RecognitionResult {
	metadata, _ := raw["metadata"].(map[string]interface{})
	list, _ := raw["results"].([]interface{})
	var out []RecognitionResult
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		r := RecognitionResult{}
		r.StartTime, _ = m["start_time"].(float64)
		r.EndTime, _ = m["end_time"].(float64)
		r.Language, _ = m["language"].(string)
		r.IsEndOfSentence, _ = m["is_eos"].(bool)
		if altList, ok := m["alternatives"].([]interface{}); ok && len(altList) > 0 {
			if alts, ok := altList[0].(map[string]interface{}); ok {
				r.Content, _ = alts["content"].(string)
				r.Confidence, _ = alts["confidence"].(float64)
				r.Speaker, _ = alts["speaker"].(string)
				if tags, ok := alts["tags"].([]interface{}); ok {
					for _, tg := range tags {
						if s, _ := tg.(string); s == "disfluency" {
							r.IsDisfluency = true
							break
						}
					}
				}
			}
		}
		if kind, _ := m["type"].(string); kind == "punctuation" {
			r.IsPunctuation = true
		}
		if attach, ok := m["attaches_to"].(string); ok {
			r.AttachesTo = Attachment(attach)
		}
		out = append(out, r)
	}
	_ = metadata
	return out
}
