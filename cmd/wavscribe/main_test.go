package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/MrWong99/wavscribe/internal/config"
	"github.com/MrWong99/wavscribe/pkg/engine/mock"
)

// writeWAV writes a mono 16 kHz 16-bit WAV file.
func writeWAV(t *testing.T, path string, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := gowav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

type testCLI struct {
	*cli
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	loader *mock.Loader
}

func newTestCLI(t *testing.T, stdin []byte, segments ...string) *testCLI {
	t.Helper()
	var stdout, stderr bytes.Buffer
	c := newCLI(bytes.NewReader(stdin), &stdout, &stderr)
	loader := &mock.Loader{Engine: &mock.Engine{
		Multilingual: true,
		Scripts:      []mock.Script{{Segments: segments}},
	}}
	c.loader = loader
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })
	return &testCLI{cli: c, stdout: &stdout, stderr: &stderr, loader: loader}
}

func (tc *testCLI) execute(args ...string) error {
	root := newRootCmd(tc.cli)
	root.SetArgs(args)
	return root.Execute()
}

func TestTranscribe_PrintsTranscript(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "speech.wav")
	writeWAV(t, in, []int{0, 8000, -8000, 0})

	tc := newTestCLI(t, nil, " hello", " world")
	if err := tc.execute("transcribe", "-m", "ggml-tiny.bin", "-l", "en", in); err != nil {
		t.Fatalf("transcribe: %v (stderr %s)", err, tc.stderr)
	}
	if got := tc.stdout.String(); got != " hello world\n" {
		t.Errorf("stdout = %q", got)
	}
	if calls := tc.loader.Calls(); len(calls) != 1 || calls[0] != "ggml-tiny.bin" {
		t.Errorf("load calls = %v", calls)
	}
}

func TestTranscribe_ReadsStdin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe.wav")
	writeWAV(t, path, []int{100, -100, 200, -200})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	tc := newTestCLI(t, data, " piped")
	if err := tc.execute("transcribe", "--model", "m.bin", "-f", "-"); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got := tc.stdout.String(); got != " piped\n" {
		t.Errorf("stdout = %q", got)
	}
	runs := tc.loader.Engine.Calls()
	if len(runs) != 1 {
		t.Fatalf("run calls = %d, want 1", len(runs))
	}
	// Piped input is sized by the stream length, header included.
	if got := runs[0].Samples; len(got) < 4 || got[0] <= 0 || got[1] >= 0 {
		t.Errorf("samples = %v", got)
	}
}

func TestTranscribe_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.wav")
	writeWAV(t, in, []int{1, 2, 3, 4})
	cfgPath := filepath.Join(dir, "wavscribe.yaml")
	cfgYAML := `
server:
  log_level: warn
transcribe:
  model: from-config.bin
  language: de
  threads: 3
  beam_size: 4
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	tc := newTestCLI(t, nil, " hallo")
	if err := tc.execute("--config", cfgPath, "transcribe", "-t", "2", "--translate", in); err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	if calls := tc.loader.Calls(); len(calls) != 1 || calls[0] != "from-config.bin" {
		t.Errorf("load calls = %v", calls)
	}
	runs := tc.loader.Engine.Calls()
	if len(runs) != 1 {
		t.Fatalf("run calls = %d", len(runs))
	}
	opts := runs[0].Opts
	if opts.Threads != 2 {
		t.Errorf("Threads = %d, want flag value 2", opts.Threads)
	}
	if opts.Language != "de" || opts.BeamSize != 4 {
		t.Errorf("config values lost: language %q beam %d", opts.Language, opts.BeamSize)
	}
	if !opts.Translate {
		t.Error("Translate flag not applied")
	}
	if tc.level.Level() != slog.LevelWarn {
		t.Errorf("log level = %v, want warn from config", tc.level.Level())
	}
}

func TestTranscribe_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no inputs", []string{"transcribe", "-m", "m.bin"}, "no input files"},
		{"unknown language", []string{"transcribe", "-m", "m.bin", "-l", "klingon", "x.wav"}, "unknown language"},
		{"no model", []string{"transcribe", "x.wav"}, "no model"},
		{"missing config", []string{"--config", "/nonexistent/wavscribe.yaml", "transcribe", "x.wav"}, "not found"},
		{"bad log level", []string{"--log-level", "loud", "transcribe", "x.wav"}, "invalid --log-level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCLI(t, nil)
			err := tc.execute(tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
			if tc.stdout.Len() != 0 {
				t.Errorf("stdout should stay empty on failure, got %q", tc.stdout)
			}
			if len(tc.loader.Calls()) != 0 {
				t.Error("model loaded despite configuration error")
			}
		})
	}
}

func TestTranscribe_UndecodableFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.wav")
	writeWAV(t, good, []int{5, 6})
	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("not a wav"), 0o600); err != nil {
		t.Fatal(err)
	}

	tc := newTestCLI(t, nil, " ok")
	if err := tc.execute("transcribe", "-m", "m.bin", bad, good); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got := tc.stdout.String(); got != " ok\n" {
		t.Errorf("stdout = %q", got)
	}
	if !strings.Contains(tc.stderr.String(), "bad.wav") {
		t.Errorf("stderr should report the skipped file: %s", tc.stderr)
	}
}

func TestVerboseOverridesLogLevel(t *testing.T) {
	tc := newTestCLI(t, nil)
	tc.logLevel = "error"
	tc.verbose = true
	if _, err := tc.setup(); err != nil {
		t.Fatal(err)
	}
	if tc.level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", tc.level.Level())
	}
}

func TestLanguages(t *testing.T) {
	tc := newTestCLI(t, nil)
	if err := tc.execute("languages"); err != nil {
		t.Fatal(err)
	}
	out := tc.stdout.String()
	for _, want := range []string{"CODE", "auto", "english", "cantonese"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestOnConfigChange(t *testing.T) {
	tc := newTestCLI(t, nil)
	if _, err := tc.setup(); err != nil {
		t.Fatal(err)
	}

	old := config.Default()
	next := config.Default()
	next.Server.LogLevel = config.LogDebug
	next.Transcribe.Model = "new.bin"
	next.Server.ListenAddr = ":9999"

	var current atomic.Pointer[config.Config]
	current.Store(old)
	tc.onConfigChange(&current)(old, next, config.Diff(old, next))

	if current.Load().Transcribe.Model != "new.bin" {
		t.Error("new config not stored")
	}
	if tc.level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug after reload", tc.level.Level())
	}
	if !strings.Contains(tc.stderr.String(), "server.listen_addr") {
		t.Errorf("restart-required key not logged: %s", tc.stderr)
	}

	// A level fixed on the command line survives reloads.
	tc.logLevel = "error"
	tc.level.Set(slog.LevelError)
	quiet := config.Default()
	quiet.Server.LogLevel = config.LogInfo
	tc.onConfigChange(&current)(next, quiet, config.Diff(next, quiet))
	if tc.level.Level() != slog.LevelError {
		t.Errorf("pinned level changed to %v", tc.level.Level())
	}
}

func TestOpenStore_InMemory(t *testing.T) {
	tc := newTestCLI(t, nil)
	if _, err := tc.setup(); err != nil {
		t.Fatal(err)
	}
	store, checks, closeStore, err := openStore(context.Background(), config.JobsConfig{}, tc.log)
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()
	if store == nil || len(checks) != 0 {
		t.Errorf("store = %T, checks = %d", store, len(checks))
	}
}
