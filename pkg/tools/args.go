package tools

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Memory and recognition actions. Face recognition distinguishes save
// from recall; voice recognition distinguishes save from identify.
const (
	ActionSave     = "save"
	ActionRecall   = "recall"
	ActionIdentify = "identify"
)

// DefaultMemoryName labels memories saved without an explicit name.
const DefaultMemoryName = "Unnamed Memory"

// RememberThisArgs are the arguments for the rememberThis tool.
type RememberThisArgs struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// RecognizePersonArgs are the arguments for the recognizePerson tool.
// Action "save" enrolls the person in view under Name; "recall" asks who
// is in view.
type RecognizePersonArgs struct {
	Action string `mapstructure:"action"`
	Name   string `mapstructure:"name"`
}

// RememberVoiceArgs are the arguments for the rememberVoice tool.
// Action "save" enrolls the current speaker's voice under Name;
// "identify" names the current speaker.
type RememberVoiceArgs struct {
	Action string `mapstructure:"action"`
	Name   string `mapstructure:"name"`
}

// DecodeArgs decodes a model-supplied argument map into a typed struct.
// Models occasionally send numbers or booleans where strings are expected,
// so decoding is weakly typed.
func DecodeArgs(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	cfg := &mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// ParseRememberThis decodes rememberThis arguments, defaulting the memory
// name when the model omits it.
func ParseRememberThis(input map[string]any) (RememberThisArgs, error) {
	var args RememberThisArgs
	if err := DecodeArgs(input, &args); err != nil {
		return args, err
	}
	if strings.TrimSpace(args.Name) == "" {
		args.Name = DefaultMemoryName
	}
	return args, nil
}

// ParseRecognizePerson decodes recognizePerson arguments. A missing
// action means "recall". Saving additionally requires a name, which the
// handler enforces.
func ParseRecognizePerson(input map[string]any) (RecognizePersonArgs, error) {
	var args RecognizePersonArgs
	if err := DecodeArgs(input, &args); err != nil {
		return args, err
	}
	args.Action = normalizeAction(args.Action, ActionRecall)
	return args, nil
}

// ParseRememberVoice decodes rememberVoice arguments. A missing action
// means "save", mirroring how people usually invoke the tool ("remember
// my voice").
func ParseRememberVoice(input map[string]any) (RememberVoiceArgs, error) {
	var args RememberVoiceArgs
	if err := DecodeArgs(input, &args); err != nil {
		return args, err
	}
	args.Action = normalizeAction(args.Action, ActionSave)
	return args, nil
}

func normalizeAction(action, fallback string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return fallback
	}
	return action
}
