package tts

import (
	"sync"
)

// 合成模型
const (
	ModelMultilingual = "eleven_multilingual_v2" // 高质量，适合预先生成的讲解
	ModelTurbo        = "eleven_turbo_v2"        // 速度和质量折中，适合长文本
	ModelFlash        = "eleven_flash_v2_5"      // 低延迟，适合实时对话
)

type Scenario string

const (
	ScenarioQuality  Scenario = "quality"
	ScenarioBalanced Scenario = "balanced"
	ScenarioRealtime Scenario = "realtime"
)

// ModelForScenario 根据使用场景推荐模型
func ModelForScenario(s Scenario) string {
	switch s {
	case ScenarioBalanced:
		return ModelTurbo
	case ScenarioRealtime:
		return ModelFlash
	default:
		return ModelMultilingual
	}
}

// 预置音色

var (
	VoiceJessica = VoiceProfile{
		ID:          "cgSgspJ2msm6clMCkdW9",
		Name:        "Jessica (博物馆导游)",
		Language:    "zh",
		Gender:      "female",
		Description: "专业博物馆导游，语气亲切清晰",
		ModelID:     ModelMultilingual,
		Settings:    DefaultVoiceSettings(),
		Tags:        []string{"clear", "professional", "guide"},
		PreviewURL:  "https://storage.googleapis.com/eleven-public-prod/premade/voices/cgSgspJ2msm6clMCkdW9/56a97bf8-b69b-448f-846c-c3a11683d45a.mp3",
		Default:     true,
	}

	VoiceEric = VoiceProfile{
		ID:          "cjVigY5qzO86Huf0OWal",
		Name:        "Eric (历史专家)",
		Language:    "zh",
		Gender:      "male",
		Description: "历史专家，提供深入的展品历史背景介绍",
		ModelID:     ModelMultilingual,
		Settings:    DefaultVoiceSettings(),
		Tags:        []string{"friendly", "authoritative", "expert"},
		PreviewURL:  "https://storage.googleapis.com/eleven-public-prod/premade/voices/cjVigY5qzO86Huf0OWal/d098fda0-6456-4030-b3d8-63aa048c9070.mp3",
	}

	VoiceSarah = VoiceProfile{
		ID:          "EXAVITQu4vr4xnSDxMaL",
		Name:        "Sarah (艺术讲解员)",
		Language:    "en",
		Gender:      "female",
		Description: "艺术展品专业讲解员，擅长艺术作品描述和欣赏指导",
		ModelID:     ModelMultilingual,
		Settings: VoiceSettings{
			Stability:       0.8,
			SimilarityBoost: 0.75,
			SpeakerBoost:    true,
		},
		Tags:       []string{"soft", "clear", "artistic"},
		PreviewURL: "https://storage.googleapis.com/eleven-public-prod/premade/voices/EXAVITQu4vr4xnSDxMaL/01a3e33c-6e99-4ee7-8543-ff2216a32186.mp3",
	}
)

// DefaultProfiles 内置音色列表
func DefaultProfiles() []VoiceProfile {
	return []VoiceProfile{VoiceJessica, VoiceEric, VoiceSarah}
}

// Registry 音色注册表
// 始终恰好有一个默认音色：没有标记时取第一个
type Registry struct {
	mu       sync.RWMutex
	profiles []VoiceProfile
}

func NewRegistry(profiles []VoiceProfile) *Registry {
	r := &Registry{}
	r.Load(profiles, true)
	return r
}

// Load 加载音色配置
// replace 为 false 时只追加 ID 尚未注册的音色
func (r *Registry) Load(profiles []VoiceProfile, replace bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if replace {
		r.profiles = nil
	}

	seen := make(map[string]bool, len(r.profiles))
	for _, p := range r.profiles {
		seen[p.ID] = true
	}
	for _, p := range profiles {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		r.profiles = append(r.profiles, p)
	}

	r.normalizeDefault()
}

// 保证只有一个 Default
func (r *Registry) normalizeDefault() {
	found := false
	for i := range r.profiles {
		if r.profiles[i].Default {
			if found {
				r.profiles[i].Default = false
			}
			found = true
		}
	}
	if !found && len(r.profiles) > 0 {
		r.profiles[0].Default = true
	}
}

func (r *Registry) FindByID(id string) (VoiceProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return VoiceProfile{}, false
}

// Default 返回默认音色，注册表为空时 ok 为 false
func (r *Registry) Default() (VoiceProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.Default {
			return p, true
		}
	}
	return VoiceProfile{}, false
}

// DefaultForLanguage 返回该语种的第一个音色（带默认标记的优先）
func (r *Registry) DefaultForLanguage(language string) (VoiceProfile, bool) {
	voices := r.FindByLanguage(language)
	if len(voices) == 0 {
		return VoiceProfile{}, false
	}
	for _, v := range voices {
		if v.Default {
			return v, true
		}
	}
	return voices[0], true
}

// FindByTags 返回带有任意一个标签的音色
func (r *Registry) FindByTags(tags ...string) []VoiceProfile {
	return r.filter(func(p *VoiceProfile) bool {
		for _, t := range tags {
			if p.HasTag(t) {
				return true
			}
		}
		return false
	})
}

func (r *Registry) FindByLanguage(language string) []VoiceProfile {
	return r.filter(func(p *VoiceProfile) bool { return p.Language == language })
}

func (r *Registry) FindByGender(gender string) []VoiceProfile {
	return r.filter(func(p *VoiceProfile) bool { return p.Gender == gender })
}

func (r *Registry) All() []VoiceProfile {
	return r.filter(func(*VoiceProfile) bool { return true })
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

func (r *Registry) filter(match func(*VoiceProfile) bool) []VoiceProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []VoiceProfile
	for i := range r.profiles {
		if match(&r.profiles[i]) {
			out = append(out, r.profiles[i])
		}
	}
	return out
}
