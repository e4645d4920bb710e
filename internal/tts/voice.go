package tts

// VoiceProfile 一个合成音色的完整配置
type VoiceProfile struct {
	ID          string        `json:"id" mapstructure:"id"`
	Name        string        `json:"name" mapstructure:"name"`
	Language    string        `json:"language" mapstructure:"language"` // 如 "zh"、"en"
	Gender      string        `json:"gender,omitempty" mapstructure:"gender"`
	Description string        `json:"description,omitempty" mapstructure:"description"`
	ModelID     string        `json:"modelId,omitempty" mapstructure:"model_id"`
	Settings    VoiceSettings `json:"settings" mapstructure:"settings"`
	Tags        []string      `json:"tags,omitempty" mapstructure:"tags"`
	PreviewURL  string        `json:"previewUrl,omitempty" mapstructure:"preview_url"`
	Default     bool          `json:"isDefault,omitempty" mapstructure:"default"`
}

// HasTag 检查是否带有指定标签
func (v *VoiceProfile) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Request 用这个音色合成 text
func (v *VoiceProfile) Request(text string) Request {
	settings := v.Settings
	return Request{
		Text:     text,
		VoiceID:  v.ID,
		ModelID:  v.ModelID,
		Settings: &settings,
	}
}
