package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFromReaderOverridesDefaults(t *testing.T) {
	yml := `
log_level: debug
audio:
  sample_rate: 44100
  channels: 2
vad:
  volume_threshold: 500
  min_duration_ms: 150
variables:
  user_speech: u_user
save_speech_path: /tmp/utterance.wav
synth:
  host: tts.example.com:8443
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.Channels != 2 {
		t.Errorf("audio overrides not applied: %+v", cfg.Audio)
	}
	if cfg.Audio.BitDepth != 16 {
		t.Errorf("unset bit depth should keep the default 16, got %d", cfg.Audio.BitDepth)
	}
	if cfg.VAD.VolumeThreshold != 500 || cfg.VAD.MinDurationMS != 150 {
		t.Errorf("vad overrides not applied: %+v", cfg.VAD)
	}
	if cfg.Variables.UserSpeech != "u_user" {
		t.Errorf("expected user_speech u_user, got %s", cfg.Variables.UserSpeech)
	}
	if cfg.Variables.SystemSpeech != "s_m" {
		t.Errorf("unset system_speech should keep the default, got %s", cfg.Variables.SystemSpeech)
	}
	if cfg.SaveSpeechPath != "/tmp/utterance.wav" {
		t.Errorf("unexpected save path %s", cfg.SaveSpeechPath)
	}
	if cfg.Synth.Host != "tts.example.com:8443" {
		t.Errorf("unexpected synth host %s", cfg.Synth.Host)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("audoi:\n  sample_rate: 8000\n"))
	if err == nil {
		t.Fatal("expected an error for a misspelled section")
	}
}

func TestValidateReportsAllFailures(t *testing.T) {
	cfg := Default()
	cfg.Audio.SampleRate = 0
	cfg.Audio.BitDepth = 24
	cfg.Variables.UserSpeech = "s_m"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	for _, want := range []string{"sample_rate", "bit_depth", "must differ"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected joined error to mention %q, got %v", want, err)
		}
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("default settings should validate, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	f := Default().Format()
	if f.SampleRate != 16000 || f.BitDepth != 16 || f.Channels != 1 || f.BigEndian {
		t.Errorf("unexpected format %+v", f)
	}
}

func TestSpeechConfigMapping(t *testing.T) {
	cfg := Default()
	cfg.VAD.MinDurationMS = 150
	cfg.SaveSpeechPath = "/tmp/x.wav"

	sc := cfg.SpeechConfig()
	if sc.UserSpeechVar != "s_u" || sc.SystemSpeechVar != "s_m" {
		t.Errorf("unexpected variables %s/%s", sc.UserSpeechVar, sc.SystemSpeechVar)
	}
	if sc.VolumeThreshold != 250 {
		t.Errorf("expected threshold 250, got %g", sc.VolumeThreshold)
	}
	if sc.MinDuration != 150*time.Millisecond {
		t.Errorf("expected 150ms, got %v", sc.MinDuration)
	}
	if sc.SavePath != "/tmp/x.wav" {
		t.Errorf("unexpected save path %s", sc.SavePath)
	}
	if sc.PlaybackChunkSize <= 0 {
		t.Error("playback chunk size should keep its default")
	}
}
