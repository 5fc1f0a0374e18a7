package settings

import "testing"

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider()
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	return p
}

func TestDefaultVoice(t *testing.T) {
	p := newTestProvider(t)
	if got := p.VoiceCode(); got != "zh-CN-XiaoxiaoNeural" {
		t.Fatalf("default voice=%q, want zh-CN-XiaoxiaoNeural", got)
	}
}

func TestSelectVoice(t *testing.T) {
	p := newTestProvider(t)

	if err := p.SelectVoice(4); err != nil {
		t.Fatalf("SelectVoice error: %v", err)
	}
	if got := p.VoiceCode(); got != "zh-HK-HiuGaaiNeural" {
		t.Fatalf("voice=%q after select, want zh-HK-HiuGaaiNeural", got)
	}

	if err := p.SelectVoice(99); err == nil {
		t.Fatal("SelectVoice(99) error=nil, want unknown id rejection")
	}
	if got := p.VoiceID(); got != 4 {
		t.Fatalf("voice id=%d after rejected select, want unchanged 4", got)
	}
}

func TestContextHint(t *testing.T) {
	tests := []struct {
		name     string
		region   string
		language string
		want     string
	}{
		{name: "neither", region: "", language: "", want: ""},
		{name: "default language alone", region: "", language: "zh-CN", want: ""},
		{
			name:   "region only",
			region: "杭州",
			want:   "请结合杭州的历史和文化。",
		},
		{
			name:     "language only",
			language: "en-US",
			want:     "忽略我提问时使用的语言，请一定使用en-US对应的语言来回答。",
		},
		{
			name:     "region and language",
			region:   "杭州",
			language: "ja-JP",
			want:     "请结合杭州的历史和文化，忽略我提问时使用的语言，请一定使用ja-JP对应的语言来回答。",
		},
		{
			name:   "whitespace region ignored",
			region: "   ",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t)
			p.SetRegion(tt.region)
			p.SetLanguage(tt.language)
			if got := p.ContextHint(); got != tt.want {
				t.Fatalf("ContextHint()=%q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecoratePrompt(t *testing.T) {
	p := newTestProvider(t)

	if got := p.DecoratePrompt("你好"); got != "你好" {
		t.Fatalf("DecoratePrompt without hint=%q, want untouched prompt", got)
	}

	p.SetRegion("北京")
	want := "你好 请结合北京的历史和文化。"
	if got := p.DecoratePrompt("你好"); got != want {
		t.Fatalf("DecoratePrompt=%q, want %q", got, want)
	}
}
