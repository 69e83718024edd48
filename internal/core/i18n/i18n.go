// Package i18n holds the user-facing strings for the web front-end.
package i18n

// Translations is the full message table for one language.
type Translations struct {
	UI     UITranslations
	Errors ErrorTranslations
	Server ServerTranslations
}

type UITranslations struct {
	Title          string `json:"title"`
	URLLabel       string `json:"url_label"`
	Submit         string `json:"submit"`
	AudioOnly      string `json:"audio_only"`
	CustomConvert  string `json:"custom_convert"`
	Bitrate        string `json:"bitrate"`
	From           string `json:"from"`
	To             string `json:"to"`
	PasswordTitle  string `json:"password_title"`
	PasswordPrompt string `json:"password_prompt"`
	ErrorTitle     string `json:"error_title"`
	Back           string `json:"back"`
}

type ErrorTranslations struct {
	WrongPassword       string `json:"wrong_password"`
	PlaylistConversion  string `json:"playlist_conversion"`
	M3U8Conversion      string `json:"m3u8_conversion"`
	DASHConversion      string `json:"dash_conversion"`
	InvalidCustomFormat string `json:"invalid_custom_format"`
	InvalidRequest      string `json:"invalid_request"`
	Generic             string `json:"generic"`
}

type ServerTranslations struct {
	NoConfigWarning string `json:"no_config_warning"`
	RunInitHint     string `json:"run_init_hint"`
}

var translations = map[string]*Translations{
	"en": {
		UI: UITranslations{
			Title:          "Download a video",
			URLLabel:       "Copy here the URL of your video (YouTube, Dailymotion, etc.)",
			Submit:         "Download",
			AudioOnly:      "Audio only (MP3)",
			CustomConvert:  "Convert into a custom format:",
			Bitrate:        "with",
			From:           "from",
			To:             "to",
			PasswordTitle:  "Password prompt",
			PasswordPrompt: "You need a password in order to download this video.",
			ErrorTitle:     "An error occurred",
			Back:           "Back",
		},
		Errors: ErrorTranslations{
			WrongPassword:       "Wrong password",
			PlaylistConversion:  "Conversion of playlists is not supported.",
			M3U8Conversion:      "Conversion of M3U8 files is not supported.",
			DASHConversion:      "Conversion of DASH segments is not supported.",
			InvalidCustomFormat: "This conversion format is not allowed.",
			InvalidRequest:      "Invalid download parameters.",
			Generic:             "Could not download this video.",
		},
		Server: ServerTranslations{
			NoConfigWarning: "No config file found, using defaults.",
			RunInitHint:     "Run 'streamdl config init' to create one.",
		},
	},
	"zh": {
		UI: UITranslations{
			Title:          "下载视频",
			URLLabel:       "在此粘贴视频链接（YouTube、Dailymotion 等）",
			Submit:         "下载",
			AudioOnly:      "仅音频（MP3）",
			CustomConvert:  "转换为自定义格式：",
			Bitrate:        "码率",
			From:           "从",
			To:             "到",
			PasswordTitle:  "需要密码",
			PasswordPrompt: "下载此视频需要密码。",
			ErrorTitle:     "发生错误",
			Back:           "返回",
		},
		Errors: ErrorTranslations{
			WrongPassword:       "密码错误",
			PlaylistConversion:  "不支持转换播放列表。",
			M3U8Conversion:      "不支持转换 M3U8 文件。",
			DASHConversion:      "不支持转换 DASH 分片。",
			InvalidCustomFormat: "不允许此转换格式。",
			InvalidRequest:      "下载参数无效。",
			Generic:             "无法下载此视频。",
		},
		Server: ServerTranslations{
			NoConfigWarning: "未找到配置文件，使用默认配置。",
			RunInitHint:     "运行 'streamdl config init' 创建配置文件。",
		},
	},
}

// GetTranslations returns the table for lang, or English if lang is unknown.
func GetTranslations(lang string) *Translations {
	if t, ok := translations[lang]; ok {
		return t
	}
	return translations["en"]
}

// Languages lists the supported language codes.
func Languages() []string {
	return []string{"en", "zh"}
}
