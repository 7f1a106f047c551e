// Package live manages the bidirectional streaming session with the
// Gemini Live API: the WebSocket wire client and the session controller
// that keeps a conversation alive across transport drops.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chinkilabs/go-chinki/internal/log"
	"github.com/chinkilabs/go-chinki/pkg/audioio"
	"github.com/chinkilabs/go-chinki/pkg/tools"
)

const (
	// Gemini Live API WebSocket endpoint.
	liveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the native-audio live model.
	DefaultModel = "models/gemini-2.5-flash-native-audio-preview-12-2025"

	// DefaultVoice is the prebuilt voice used for speech output.
	DefaultVoice = "Kore"
)

// ErrNotConnected is returned when sending on a closed or unopened client.
var ErrNotConnected = fmt.Errorf("live: not connected")

// ClientConfig configures one wire connection.
type ClientConfig struct {
	APIKey       string
	Model        string
	Voice        string
	SystemPrompt string
	Tools        []tools.Tool
}

// Handlers are the inbound event callbacks for one connection. Callbacks
// run on the connection's read goroutine; keep them short or hand off.
type Handlers struct {
	// OnAudio receives base64 PCM16 playback payloads.
	OnAudio func(payload string)

	// OnInputTranscription receives fragments of the user's speech as text.
	OnInputTranscription func(text string)

	// OnOutputTranscription receives fragments of the assistant's speech
	// as text.
	OnOutputTranscription func(text string)

	// OnToolCalls receives each tool-call batch from the model.
	OnToolCalls func(calls []tools.Call)

	// OnInterrupted fires when the user barges in over assistant speech.
	OnInterrupted func()

	// OnTurnComplete fires when the assistant finishes a turn.
	OnTurnComplete func()

	// OnClose fires once when the connection ends for any reason other
	// than an explicit Close. err carries the transport failure.
	OnClose func(err error)
}

// Client is one WebSocket connection to the live API.
type Client struct {
	config   ClientConfig
	handlers Handlers

	ws   *websocket.Conn
	wsMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// Dial opens a connection, sends the session setup and starts the read
// loop. The returned client is ready to stream media.
func Dial(ctx context.Context, cfg ClientConfig, h Handlers) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("live: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}

	url := fmt.Sprintf("%s?key=%s", liveURL, cfg.APIKey)
	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("live: connect: %w", err)
	}

	c := &Client{config: cfg, handlers: h, ws: ws}
	if err := c.sendSetup(); err != nil {
		ws.Close()
		return nil, fmt.Errorf("live: configure session: %w", err)
	}

	go c.readLoop()
	return c, nil
}

// sendSetup sends the initial session configuration.
func (c *Client) sendSetup() error {
	var declarations []map[string]any
	for _, tool := range c.config.Tools {
		declarations = append(declarations, map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.Parameters,
		})
	}

	setup := map[string]any{
		"model": c.config.Model,
		"generation_config": map[string]any{
			"response_modalities": []string{"AUDIO"},
			"candidate_count":     1,
			"max_output_tokens":   512,
			"speech_config": map[string]any{
				"voice_config": map[string]any{
					"prebuilt_voice_config": map[string]any{
						"voice_name": c.config.Voice,
					},
				},
			},
		},
		"system_instruction": map[string]any{
			"parts": []map[string]any{
				{"text": c.config.SystemPrompt},
			},
		},
		"input_audio_transcription":  map[string]any{},
		"output_audio_transcription": map[string]any{},
	}
	if len(declarations) > 0 {
		setup["tools"] = []map[string]any{
			{"function_declarations": declarations},
		}
	}

	return c.sendJSON(map[string]any{"setup": setup})
}

// SendAudioFrame streams one microphone frame to the model.
func (c *Client) SendAudioFrame(frame audioio.MediaFrame) error {
	return c.sendMediaChunk(frame)
}

// SendVideoFrame streams one camera frame to the model.
func (c *Client) SendVideoFrame(frame audioio.MediaFrame) error {
	return c.sendMediaChunk(frame)
}

func (c *Client) sendMediaChunk(frame audioio.MediaFrame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrNotConnected
	}

	return c.sendJSON(map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{"data": frame.Data, "mime_type": frame.MimeType},
			},
		},
	})
}

// SendToolResponses returns a batch of tool results, one per call in the
// batch that produced them.
func (c *Client) SendToolResponses(results []tools.Result) error {
	if len(results) == 0 {
		return nil
	}

	responses := make([]map[string]any, 0, len(results))
	for _, r := range results {
		responses = append(responses, map[string]any{
			"id":       r.CallID,
			"name":     r.Name,
			"response": map[string]any{"result": r.Output},
		})
	}

	return c.sendJSON(map[string]any{
		"tool_response": map[string]any{
			"function_responses": responses,
		},
	})
}

// Close shuts the connection down. OnClose does not fire for an explicit
// Close.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.ws.Close()
}

// readLoop pumps inbound messages until the connection ends.
func (c *Client) readLoop() {
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.closed = true
			c.mu.Unlock()

			if !closed && c.handlers.OnClose != nil {
				c.handlers.OnClose(err)
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug("unparseable live message", "err", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg map[string]any) {
	if _, ok := msg["setupComplete"]; ok {
		log.Debug("live session ready")
		return
	}

	if serverContent, ok := msg["serverContent"].(map[string]any); ok {
		c.handleServerContent(serverContent)
		return
	}

	if toolCall, ok := msg["toolCall"].(map[string]any); ok {
		c.handleToolCall(toolCall)
		return
	}

	if _, ok := msg["toolCallCancellation"]; ok {
		log.Debug("tool call cancelled")
		return
	}
}

// handleServerContent processes audio, transcripts and turn markers. A
// single message may carry any subset of fields, so every field is
// checked independently. Interruption runs before audio so a flushed
// turn is not rescheduled by parts riding in the same message.
func (c *Client) handleServerContent(content map[string]any) {
	if interrupted, ok := content["interrupted"].(bool); ok && interrupted {
		if c.handlers.OnInterrupted != nil {
			c.handlers.OnInterrupted()
		}
	}

	if modelTurn, ok := content["modelTurn"].(map[string]any); ok {
		c.handleModelTurn(modelTurn)
	}

	if transcript, ok := content["inputTranscription"].(map[string]any); ok {
		if text, ok := transcript["text"].(string); ok && text != "" {
			if c.handlers.OnInputTranscription != nil {
				c.handlers.OnInputTranscription(text)
			}
		}
	}

	if transcript, ok := content["outputTranscription"].(map[string]any); ok {
		if text, ok := transcript["text"].(string); ok && text != "" {
			if c.handlers.OnOutputTranscription != nil {
				c.handlers.OnOutputTranscription(text)
			}
		}
	}

	if turnComplete, ok := content["turnComplete"].(bool); ok && turnComplete {
		if c.handlers.OnTurnComplete != nil {
			c.handlers.OnTurnComplete()
		}
	}
}

func (c *Client) handleModelTurn(modelTurn map[string]any) {
	parts, ok := modelTurn["parts"].([]any)
	if !ok {
		return
	}
	for _, part := range parts {
		partMap, ok := part.(map[string]any)
		if !ok {
			continue
		}
		inlineData, ok := partMap["inlineData"].(map[string]any)
		if !ok {
			continue
		}
		data, ok := inlineData["data"].(string)
		if !ok || data == "" {
			continue
		}
		if c.handlers.OnAudio != nil {
			c.handlers.OnAudio(data)
		}
	}
}

// handleToolCall delivers the batch whole so the dispatcher can answer
// every call in one response.
func (c *Client) handleToolCall(toolCall map[string]any) {
	functionCalls, ok := toolCall["functionCalls"].([]any)
	if !ok {
		return
	}

	calls := make([]tools.Call, 0, len(functionCalls))
	for _, fc := range functionCalls {
		fcMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}
		name, _ := fcMap["name"].(string)
		id, _ := fcMap["id"].(string)
		args, _ := fcMap["args"].(map[string]any)
		calls = append(calls, tools.Call{ID: id, Name: name, Arguments: args})
	}

	if len(calls) > 0 && c.handlers.OnToolCalls != nil {
		c.handlers.OnToolCalls(calls)
	}
}

func (c *Client) sendJSON(v any) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteJSON(v)
}
