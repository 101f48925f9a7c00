package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Artifacts   ArtifactsConfig `yaml:"artifacts"`
	Capture     CaptureConfig   `yaml:"capture"`
	STT         STTConfig       `yaml:"stt"`
	Vision      VisionConfig    `yaml:"vision"`
	TTS         TTSConfig       `yaml:"tts"`
	Playback    PlaybackConfig  `yaml:"playback"`
	Turn        TurnConfig      `yaml:"turn"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

type CaptureConfig struct {
	SampleRate         int     `yaml:"sample_rate"`
	Channels           int     `yaml:"channels"`
	FrameDurationMS    int     `yaml:"frame_duration_ms"`
	CalibrationMS      int     `yaml:"calibration_ms"`
	TimeoutSec         int     `yaml:"timeout_sec"`
	PhraseTimeLimitSec int     `yaml:"phrase_time_limit_sec"`
	TrailingSilenceMS  int     `yaml:"trailing_silence_ms"`
	ThresholdGain      float64 `yaml:"threshold_gain"`
}

type STTConfig struct {
	Mode       string `yaml:"mode"` // groq, mock
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	TimeoutSec int    `yaml:"timeout_sec"`
	APIKey     string `yaml:"-"`
}

type VisionConfig struct {
	Mode        string  `yaml:"mode"` // groq, mock
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	APIKey      string  `yaml:"-"`
}

type TTSConfig struct {
	Mode         string `yaml:"mode"` // elevenlabs, gtranslate, mock
	Endpoint     string `yaml:"endpoint"`
	VoiceID      string `yaml:"voice_id"`
	Model        string `yaml:"model"`
	OutputFormat string `yaml:"output_format"`
	Language     string `yaml:"language"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	APIKey       string `yaml:"-"`
}

type PlaybackConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"` // overrides platform dispatch when set
	FFmpeg  string `yaml:"ffmpeg"`
}

type TurnConfig struct {
	PersonaVersion string `yaml:"persona_version"`
	PersonaText    string `yaml:"persona_text"`
}

func Default() Config {
	return Config{
		RuntimeName: "medivoice-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Artifacts: ArtifactsConfig{
			Dir: "./data/artifacts",
		},
		Capture: CaptureConfig{
			SampleRate:         16000,
			Channels:           1,
			FrameDurationMS:    20,
			CalibrationMS:      1000,
			TimeoutSec:         10,
			PhraseTimeLimitSec: 0,
			TrailingSilenceMS:  1200,
			ThresholdGain:      1.8,
		},
		STT: STTConfig{
			Mode:       "groq",
			Endpoint:   "https://api.groq.com/openai/v1",
			Model:      "whisper-large-v3",
			Language:   "en",
			TimeoutSec: 45,
		},
		Vision: VisionConfig{
			Mode:        "groq",
			Endpoint:    "https://api.groq.com/openai/v1",
			Model:       "llama-3.2-11b-vision-preview",
			MaxTokens:   256,
			Temperature: 0.7,
			TimeoutSec:  60,
		},
		TTS: TTSConfig{
			Mode:         "elevenlabs",
			Endpoint:     "https://api.elevenlabs.io",
			VoiceID:      "9BWtsMINqrJLrRacOk9x", // Aria
			Model:        "eleven_turbo_v2",
			OutputFormat: "mp3_22050_32",
			Language:     "en",
			TimeoutSec:   45,
		},
		Playback: PlaybackConfig{
			Enabled: true,
			FFmpeg:  "ffmpeg",
		},
		Turn: TurnConfig{
			PersonaVersion: "doctor-v1",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "MEDIVOICE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "MEDIVOICE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MEDIVOICE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MEDIVOICE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MEDIVOICE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MEDIVOICE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MEDIVOICE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "MEDIVOICE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "MEDIVOICE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MEDIVOICE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "MEDIVOICE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MEDIVOICE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MEDIVOICE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MEDIVOICE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MEDIVOICE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MEDIVOICE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Artifacts.Dir, "MEDIVOICE_ARTIFACTS_DIR")
	overrideInt(&cfg.Capture.SampleRate, "MEDIVOICE_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "MEDIVOICE_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.TimeoutSec, "MEDIVOICE_CAPTURE_TIMEOUT_SEC")
	overrideInt(&cfg.Capture.PhraseTimeLimitSec, "MEDIVOICE_CAPTURE_PHRASE_TIME_LIMIT_SEC")
	overrideInt(&cfg.Capture.CalibrationMS, "MEDIVOICE_CAPTURE_CALIBRATION_MS")
	overrideInt(&cfg.Capture.TrailingSilenceMS, "MEDIVOICE_CAPTURE_TRAILING_SILENCE_MS")
	overrideString(&cfg.STT.Mode, "MEDIVOICE_STT_MODE")
	overrideString(&cfg.STT.Endpoint, "MEDIVOICE_STT_ENDPOINT")
	overrideString(&cfg.STT.Model, "MEDIVOICE_STT_MODEL")
	overrideString(&cfg.STT.Language, "MEDIVOICE_STT_LANGUAGE")
	overrideInt(&cfg.STT.TimeoutSec, "MEDIVOICE_STT_TIMEOUT_SEC")
	overrideString(&cfg.Vision.Mode, "MEDIVOICE_VISION_MODE")
	overrideString(&cfg.Vision.Endpoint, "MEDIVOICE_VISION_ENDPOINT")
	overrideString(&cfg.Vision.Model, "MEDIVOICE_VISION_MODEL")
	overrideInt(&cfg.Vision.MaxTokens, "MEDIVOICE_VISION_MAX_TOKENS")
	overrideFloat(&cfg.Vision.Temperature, "MEDIVOICE_VISION_TEMPERATURE")
	overrideInt(&cfg.Vision.TimeoutSec, "MEDIVOICE_VISION_TIMEOUT_SEC")
	overrideString(&cfg.TTS.Mode, "MEDIVOICE_TTS_MODE")
	overrideString(&cfg.TTS.Endpoint, "MEDIVOICE_TTS_ENDPOINT")
	overrideString(&cfg.TTS.VoiceID, "MEDIVOICE_TTS_VOICE_ID")
	overrideString(&cfg.TTS.Model, "MEDIVOICE_TTS_MODEL")
	overrideString(&cfg.TTS.OutputFormat, "MEDIVOICE_TTS_OUTPUT_FORMAT")
	overrideString(&cfg.TTS.Language, "MEDIVOICE_TTS_LANGUAGE")
	overrideInt(&cfg.TTS.TimeoutSec, "MEDIVOICE_TTS_TIMEOUT_SEC")
	overrideBool(&cfg.Playback.Enabled, "MEDIVOICE_PLAYBACK_ENABLED")
	overrideString(&cfg.Playback.Command, "MEDIVOICE_PLAYBACK_COMMAND")
	overrideString(&cfg.Playback.FFmpeg, "MEDIVOICE_PLAYBACK_FFMPEG")
	overrideString(&cfg.Turn.PersonaVersion, "MEDIVOICE_TURN_PERSONA_VERSION")
	overrideString(&cfg.Turn.PersonaText, "MEDIVOICE_TURN_PERSONA_TEXT")

	// Provider credentials are env-only and never read from yaml. Each
	// missing credential disables only its owning stage.
	overrideString(&cfg.STT.APIKey, "GROQ_API_KEY")
	overrideString(&cfg.Vision.APIKey, "GROQ_API_KEY")
	overrideString(&cfg.TTS.APIKey, "ELEVENLABS_API_KEY")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Artifacts.Dir == "" {
		return errors.New("artifacts.dir must not be empty")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels <= 0 {
		return errors.New("capture.channels must be positive")
	}
	if cfg.Capture.FrameDurationMS <= 0 {
		return errors.New("capture.frame_duration_ms must be positive")
	}
	if cfg.Capture.TimeoutSec <= 0 {
		return errors.New("capture.timeout_sec must be positive")
	}
	if cfg.Capture.PhraseTimeLimitSec < 0 {
		return errors.New("capture.phrase_time_limit_sec must be >= 0 (0 means unbounded)")
	}
	switch cfg.STT.Mode {
	case "groq", "mock":
	default:
		return errors.New("stt.mode must be one of groq|mock")
	}
	if cfg.STT.Mode == "groq" && cfg.STT.Endpoint == "" {
		return errors.New("stt.endpoint must be set when mode=groq")
	}
	if cfg.STT.TimeoutSec <= 0 {
		return errors.New("stt.timeout_sec must be positive")
	}
	switch cfg.Vision.Mode {
	case "groq", "mock":
	default:
		return errors.New("vision.mode must be one of groq|mock")
	}
	if cfg.Vision.Mode == "groq" && cfg.Vision.Endpoint == "" {
		return errors.New("vision.endpoint must be set when mode=groq")
	}
	if cfg.Vision.MaxTokens < 0 {
		return errors.New("vision.max_tokens must be >= 0")
	}
	if cfg.Vision.TimeoutSec <= 0 {
		return errors.New("vision.timeout_sec must be positive")
	}
	switch cfg.TTS.Mode {
	case "elevenlabs", "gtranslate", "mock":
	default:
		return errors.New("tts.mode must be one of elevenlabs|gtranslate|mock")
	}
	if cfg.TTS.Mode == "elevenlabs" && cfg.TTS.VoiceID == "" {
		return errors.New("tts.voice_id must be set when mode=elevenlabs")
	}
	if cfg.TTS.TimeoutSec <= 0 {
		return errors.New("tts.timeout_sec must be positive")
	}
	if cfg.Turn.PersonaVersion == "" {
		return errors.New("turn.persona_version must not be empty")
	}
	return nil
}
