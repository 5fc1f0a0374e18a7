// Package settings holds the per-session user preferences: the selected
// speech voice, the region context, and the reply language.
package settings

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed voices.yaml
var voiceCatalog []byte

const defaultLanguage = "zh-CN"

// Voice is one entry of the speech-voice catalog.
type Voice struct {
	ID       int    `yaml:"id"`
	Code     string `yaml:"code"`
	Label    string `yaml:"label"`
	Language string `yaml:"language"`
}

type catalog struct {
	DefaultVoice int     `yaml:"default_voice"`
	Voices       []Voice `yaml:"voices"`
}

// Provider resolves voice ids to backend voice codes and builds the context
// hint attached to outgoing requests.
type Provider struct {
	mu       sync.RWMutex
	voices   map[int]Voice
	ordered  []Voice
	voiceID  int
	region   string
	language string
}

// NewProvider loads the embedded voice catalog.
func NewProvider() (*Provider, error) {
	var c catalog
	if err := yaml.Unmarshal(voiceCatalog, &c); err != nil {
		return nil, fmt.Errorf("parse voice catalog: %w", err)
	}
	if len(c.Voices) == 0 {
		return nil, fmt.Errorf("voice catalog is empty")
	}

	voices := make(map[int]Voice, len(c.Voices))
	for _, v := range c.Voices {
		voices[v.ID] = v
	}
	if _, ok := voices[c.DefaultVoice]; !ok {
		c.DefaultVoice = c.Voices[0].ID
	}
	return &Provider{
		voices:   voices,
		ordered:  c.Voices,
		voiceID:  c.DefaultVoice,
		language: defaultLanguage,
	}, nil
}

// Voices lists the catalog in declaration order.
func (p *Provider) Voices() []Voice {
	return append([]Voice(nil), p.ordered...)
}

// SelectVoice switches the active voice.
func (p *Provider) SelectVoice(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.voices[id]; !ok {
		return fmt.Errorf("unknown voice id %d", id)
	}
	p.voiceID = id
	return nil
}

// VoiceCode returns the backend code of the active voice.
func (p *Provider) VoiceCode() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.voices[p.voiceID].Code
}

// VoiceID returns the active voice id.
func (p *Provider) VoiceID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.voiceID
}

// SetRegion sets the region woven into the context hint. Empty clears it.
func (p *Provider) SetRegion(region string) {
	p.mu.Lock()
	p.region = strings.TrimSpace(region)
	p.mu.Unlock()
}

// SetLanguage sets the reply language code. Empty resets to the default.
func (p *Provider) SetLanguage(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = defaultLanguage
	}
	p.mu.Lock()
	p.language = code
	p.mu.Unlock()
}

// ContextHint builds the instruction attached to outgoing requests. A region
// asks for local history and culture; a non-default language asks the
// assistant to answer in that language regardless of the prompt language.
// Returns the empty string when neither applies.
func (p *Provider) ContextHint() string {
	p.mu.RLock()
	region := p.region
	language := p.language
	p.mu.RUnlock()

	var b strings.Builder
	if region != "" {
		b.WriteString("请结合" + region + "的历史和文化")
	}
	if language != "" && language != defaultLanguage {
		if b.Len() > 0 {
			b.WriteString("，")
		}
		b.WriteString("忽略我提问时使用的语言，请一定使用" + language + "对应的语言来回答")
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString("。")
	return b.String()
}

// DecoratePrompt appends the context hint to a text prompt.
func (p *Provider) DecoratePrompt(text string) string {
	hint := p.ContextHint()
	if hint == "" {
		return text
	}
	return text + " " + hint
}
