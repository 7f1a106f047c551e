package memorystore

// Memory types.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeMixed = "mixed"
)

// Memory is a stored memory record: text, an optional image, an optional
// audio clip, plus recognition metadata accumulated by the backend.
type Memory struct {
	ID              int              `json:"id,omitempty"`
	Type            string           `json:"type"`
	Content         string           `json:"content,omitempty"`
	ImagePath       string           `json:"image_path,omitempty"`
	AudioPath       string           `json:"audio_path,omitempty"`
	Name            string           `json:"name"`
	Timestamp       string           `json:"timestamp,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
	RecognitionData *RecognitionData `json:"recognition_data,omitempty"`
	VoiceData       *VoiceData       `json:"voice_data,omitempty"`
}

// RecognitionData describes a remembered person or object for later visual
// matching.
type RecognitionData struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features,omitempty"`
	AnalyzedAt  string   `json:"analyzed_at,omitempty"`
}

// VoiceData holds the speech patterns captured for a voice profile.
type VoiceData struct {
	SpeechPatterns *SpeechPatterns `json:"speech_patterns,omitempty"`
	RecordedAt     string          `json:"recorded_at,omitempty"`
}

// SpeechPatterns summarize how a person talks, derived from a transcript
// sample.
type SpeechPatterns struct {
	SampleText    string   `json:"sample_text,omitempty"`
	WordCount     int      `json:"word_count,omitempty"`
	CommonWords   []string `json:"common_words,omitempty"`
	LanguageStyle string   `json:"language_style,omitempty"`
}

// UserProfile carries what the assistant knows about its user across
// sessions.
type UserProfile struct {
	Name              string   `json:"name,omitempty"`
	Interests         []string `json:"interests"`
	Goals             []string `json:"goals"`
	SkillLevel        string   `json:"skill_level,omitempty"`
	BusinessType      string   `json:"business_type,omitempty"`
	PreferredLanguage string   `json:"preferred_language,omitempty"`
	PersonalityType   string   `json:"personality_type,omitempty"`
}

// SaveMemoryRequest is the POST body for saving a memory.
type SaveMemoryRequest struct {
	Text            string           `json:"text"`
	Image           string           `json:"image,omitempty"`
	Audio           string           `json:"audio,omitempty"`
	Name            string           `json:"name"`
	Metadata        map[string]any   `json:"metadata"`
	RecognitionData *RecognitionData `json:"recognition_data,omitempty"`
}

// SaveMemoryResponse reports the outcome of a save.
type SaveMemoryResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	MemoryID int    `json:"memory_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

// ListMemoriesResponse is the payload of a list call.
type ListMemoriesResponse struct {
	Success  bool     `json:"success"`
	Count    int      `json:"count"`
	Memories []Memory `json:"memories"`
}

// SearchMemoriesResponse is the payload of a search call.
type SearchMemoriesResponse struct {
	Success  bool     `json:"success"`
	Count    int      `json:"count"`
	Query    string   `json:"query"`
	Memories []Memory `json:"memories"`
}

// RecognizeResponse reports a visual or voice recognition attempt. Found
// distinguishes "nothing matched" from a transport failure.
type RecognizeResponse struct {
	Success    bool    `json:"success"`
	Found      bool    `json:"found"`
	Name       string  `json:"name,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	Confidence string  `json:"confidence,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// UserProfileResponse wraps a profile fetch.
type UserProfileResponse struct {
	Success bool         `json:"success"`
	Profile *UserProfile `json:"profile"`
}

// StatusResponse is the generic success/message envelope used by delete
// and profile-save calls.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
