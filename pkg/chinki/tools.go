package chinki

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chinkilabs/go-chinki/internal/log"
	"github.com/chinkilabs/go-chinki/pkg/memorystore"
	"github.com/chinkilabs/go-chinki/pkg/tools"
)

// persistTimeout bounds the background writes to the memory backend.
const persistTimeout = 30 * time.Second

// buildRegistry wires the five assistant tools to the app. Every handler
// acknowledges fast; persistence runs in the background so the model
// never waits on the memory backend.
func (a *App) buildRegistry() *tools.Registry {
	return tools.NewRegistry(
		tools.Tool{
			Name:        "requestCamera",
			Description: "Call this function when the user wants to turn on the camera, show you something, or says 'dekho', 'camera on', 'see this'.",
			Handler:     a.handleRequestCamera,
		},
		tools.Tool{
			Name:        "stopCamera",
			Description: "Call this function when the user wants to turn off the camera or says 'camera off', 'stop video'.",
			Handler:     a.handleStopCamera,
		},
		tools.Tool{
			Name:        "rememberThis",
			Description: "Call this function when the user wants you to remember something. Triggers include: 'yaad rakhna', 'ise yaad rakho', 'remember this', 'save this', 'yaad rakh'. Extract the name/label from user's speech.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "The name or label for this memory, extracted from user's speech (e.g., 'medicine bottle', 'my friend', 'this document')",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "A brief description of what to remember based on what you see or hear",
					},
				},
				"required": []string{"name"},
			},
			Handler: a.handleRememberThis,
		},
		tools.Tool{
			Name:        "recognizePerson",
			Description: "Call this when user wants to recognize someone or asks 'yeh kaun hai', 'who is this', 'isko pehchan lo [naam]'. Use action='save' to remember with name, action='recall' to identify.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "Name of the person/object if user provides it (for saving)",
					},
					"action": map[string]any{
						"type":        "string",
						"description": "'save' to remember a new person/object, 'recall' to identify who/what is in view",
					},
				},
				"required": []string{"action"},
			},
			Handler: a.handleRecognizePerson,
		},
		tools.Tool{
			Name:        "rememberVoice",
			Description: "Call when user says 'meri awaz yaad rakho', 'remember my voice', or wants you to learn their voice. Use action='save' to remember voice, action='identify' to recognize who is speaking.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "Person's name (for saving voice profile)",
					},
					"action": map[string]any{
						"type":        "string",
						"description": "'save' to remember voice profile, 'identify' to recognize speaker",
					},
				},
				"required": []string{"action"},
			},
			Handler: a.handleRememberVoice,
		},
	)
}

// handleRequestCamera raises the permission prompt. The camera does not
// start until the user approves it on the dashboard.
func (a *App) handleRequestCamera(map[string]any) (string, error) {
	if !a.camera.Active() && !a.cameraPromptActive() {
		a.setCameraPrompt(true)
	}
	return "ok, permission dialog displayed", nil
}

func (a *App) handleStopCamera(map[string]any) (string, error) {
	a.StopCamera()
	return "ok, camera stopped", nil
}

// handleRememberThis captures a short mic clip plus a still frame, then
// hands persistence to the background. The clip capture blocks the
// acknowledgement; the backend write never does.
func (a *App) handleRememberThis(args map[string]any) (string, error) {
	parsed, err := tools.ParseRememberThis(args)
	if err != nil {
		return "", err
	}

	clip, err := a.recorder.Clip(context.Background(), a.captureWindow)
	if err != nil {
		log.Warn("memory clip capture failed", "err", err)
	}

	image := a.captureStill()
	text, _ := a.session.Transcripts()
	if text == "" {
		text = parsed.Description
	}

	req := memorystore.SaveMemoryRequest{
		Text:  text,
		Image: image,
		Name:  parsed.Name,
		Metadata: map[string]any{
			"timestamp":   time.Now().Format(time.RFC3339),
			"description": parsed.Description,
			"source":      "voice_command",
		},
	}
	if len(clip.Data) > 0 {
		req.Audio = base64.StdEncoding.EncodeToString(clip.Data)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		resp, err := a.memory.SaveMemory(ctx, req)
		if err != nil {
			log.Error("memory save failed", "name", parsed.Name, "err", err)
			return
		}
		if !resp.Success {
			log.Warn("memory save rejected", "name", parsed.Name, "message", resp.Message)
			return
		}
		log.Info("memory saved", "name", resp.Name, "id", resp.MemoryID)
	}()

	return fmt.Sprintf("ok, memory saved as %q", parsed.Name), nil
}

func (a *App) handleRecognizePerson(args map[string]any) (string, error) {
	parsed, err := tools.ParseRecognizePerson(args)
	if err != nil {
		return "", err
	}

	if parsed.Action == tools.ActionSave {
		if parsed.Name == "" {
			return "", fmt.Errorf("a name is required to remember someone")
		}
		image := a.captureStill()
		req := memorystore.SaveMemoryRequest{
			Text:  "Person: " + parsed.Name,
			Image: image,
			Name:  parsed.Name,
			Metadata: map[string]any{
				"timestamp": time.Now().Format(time.RFC3339),
				"source":    "recognition_save",
			},
			RecognitionData: &memorystore.RecognitionData{
				Type:        "person",
				Description: "Person named " + parsed.Name,
				AnalyzedAt:  time.Now().Format(time.RFC3339),
			},
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			resp, err := a.memory.SaveMemory(ctx, req)
			if err != nil {
				log.Error("person save failed", "name", parsed.Name, "err", err)
				return
			}
			log.Info("person saved", "name", parsed.Name, "id", resp.MemoryID)
		}()

		return "ok, remembered " + parsed.Name, nil
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		resp, err := a.memory.RecognizeFromDescription(ctx, "person in view")
		if err != nil {
			log.Error("person recognition failed", "err", err)
			return
		}
		if resp.Found {
			log.Info("person recognized", "name", resp.Name, "similarity", resp.Similarity)
		} else {
			log.Info("person not recognized")
		}
	}()

	return "ok, checking who this is", nil
}

func (a *App) handleRememberVoice(args map[string]any) (string, error) {
	parsed, err := tools.ParseRememberVoice(args)
	if err != nil {
		return "", err
	}

	transcript, _ := a.session.Transcripts()

	if parsed.Action == tools.ActionSave {
		if parsed.Name == "" {
			return "", fmt.Errorf("a name is required to remember a voice")
		}
		sample := transcript
		if sample == "" {
			sample = "sample speech"
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			resp, err := a.memory.SaveVoiceProfile(ctx, parsed.Name, sample)
			if err != nil {
				log.Error("voice profile save failed", "name", parsed.Name, "err", err)
				return
			}
			if !resp.Success {
				log.Warn("voice profile rejected", "name", parsed.Name, "message", resp.Message)
			}
		}()

		return fmt.Sprintf("ok, remembered %s's voice", parsed.Name), nil
	}

	if transcript != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			resp, err := a.memory.RecognizeVoice(ctx, transcript)
			if err != nil {
				log.Error("voice recognition failed", "err", err)
				return
			}
			if resp.Found {
				log.Info("speaker identified", "name", resp.Name, "confidence", resp.Confidence)
			} else {
				log.Info("speaker not recognized")
			}
		}()
	}

	return "ok, identifying speaker", nil
}

// captureStill grabs a high-quality frame as base64, or "" when the
// camera is off.
func (a *App) captureStill() string {
	still, err := a.camera.Still()
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(still)
}
