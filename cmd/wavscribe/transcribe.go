package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/wavscribe/internal/transcribe"
	"github.com/MrWong99/wavscribe/pkg/audio/wav"
)

// paramFlags maps each run flag to the field it sets. Only flags given on the
// command line override the configured defaults.
var paramFlags = map[string]func(dst, src *transcribe.Params){
	"threads":        func(d, s *transcribe.Params) { d.Threads = s.Threads },
	"processors":     func(d, s *transcribe.Params) { d.Processors = s.Processors },
	"offset-t":       func(d, s *transcribe.Params) { d.OffsetTMs = s.OffsetTMs },
	"offset-n":       func(d, s *transcribe.Params) { d.OffsetN = s.OffsetN },
	"duration":       func(d, s *transcribe.Params) { d.DurationMs = s.DurationMs },
	"max-context":    func(d, s *transcribe.Params) { d.MaxContext = s.MaxContext },
	"max-len":        func(d, s *transcribe.Params) { d.MaxLen = s.MaxLen },
	"best-of":        func(d, s *transcribe.Params) { d.BestOf = s.BestOf },
	"beam-size":      func(d, s *transcribe.Params) { d.BeamSize = s.BeamSize },
	"word-thold":     func(d, s *transcribe.Params) { d.WordThold = s.WordThold },
	"entropy-thold":  func(d, s *transcribe.Params) { d.EntropyThold = s.EntropyThold },
	"logprob-thold":  func(d, s *transcribe.Params) { d.LogprobThold = s.LogprobThold },
	"speed-up":       func(d, s *transcribe.Params) { d.SpeedUp = s.SpeedUp },
	"translate":      func(d, s *transcribe.Params) { d.Translate = s.Translate },
	"diarize":        func(d, s *transcribe.Params) { d.Diarize = s.Diarize },
	"output-txt":     func(d, s *transcribe.Params) { d.OutputTxt = s.OutputTxt },
	"output-vtt":     func(d, s *transcribe.Params) { d.OutputVtt = s.OutputVtt },
	"output-srt":     func(d, s *transcribe.Params) { d.OutputSrt = s.OutputSrt },
	"output-wts":     func(d, s *transcribe.Params) { d.OutputWts = s.OutputWts },
	"output-csv":     func(d, s *transcribe.Params) { d.OutputCsv = s.OutputCsv },
	"print-special":  func(d, s *transcribe.Params) { d.PrintSpecial = s.PrintSpecial },
	"print-colors":   func(d, s *transcribe.Params) { d.PrintColors = s.PrintColors },
	"print-progress": func(d, s *transcribe.Params) { d.PrintProgress = s.PrintProgress },
	"no-timestamps":  func(d, s *transcribe.Params) { d.NoTimestamps = s.NoTimestamps },
	"language":       func(d, s *transcribe.Params) { d.Language = s.Language },
	"prompt":         func(d, s *transcribe.Params) { d.Prompt = s.Prompt },
	"model":          func(d, s *transcribe.Params) { d.Model = s.Model },
	"output-file":    func(d, s *transcribe.Params) { d.Outputs = s.Outputs },
}

func newTranscribeCmd(c *cli) *cobra.Command {
	fp := transcribe.DefaultParams()
	var files []string

	cmd := &cobra.Command{
		Use:   "transcribe [flags] [files...]",
		Short: "Transcribe WAV files and print the text",
		Long: `Transcribe one or more 16 kHz WAV files and print the concatenated text
on standard output. Use "-" to read a WAV stream from standard input.

Flags override the transcribe section of the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.setup()
			if err != nil {
				return err
			}
			p := cfg.Transcribe
			for name, set := range paramFlags {
				if cmd.Flags().Changed(name) {
					set(&p, &fp)
				}
			}
			if inputs := append(files, args...); len(inputs) > 0 {
				p.Inputs = inputs
			}
			return c.transcribe(cmd.Context(), p)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&fp.Threads, "threads", "t", fp.Threads, "number of threads to use during computation")
	f.IntVarP(&fp.Processors, "processors", "p", fp.Processors, "number of processors to use during computation")
	f.IntVar(&fp.OffsetTMs, "offset-t", fp.OffsetTMs, "time offset in milliseconds")
	f.IntVar(&fp.OffsetN, "offset-n", fp.OffsetN, "segment index offset")
	f.IntVarP(&fp.DurationMs, "duration", "d", fp.DurationMs, "duration of audio to process in milliseconds")
	f.IntVar(&fp.MaxContext, "max-context", fp.MaxContext, "maximum number of text context tokens to store")
	f.IntVar(&fp.MaxLen, "max-len", fp.MaxLen, "maximum segment length in characters")
	f.IntVar(&fp.BestOf, "best-of", fp.BestOf, "number of best candidates to keep")
	f.IntVar(&fp.BeamSize, "beam-size", fp.BeamSize, "beam size for beam search")
	f.Float32Var(&fp.WordThold, "word-thold", fp.WordThold, "word timestamp probability threshold")
	f.Float32Var(&fp.EntropyThold, "entropy-thold", fp.EntropyThold, "entropy threshold for decoder fail")
	f.Float32Var(&fp.LogprobThold, "logprob-thold", fp.LogprobThold, "log probability threshold for decoder fail")
	f.BoolVar(&fp.SpeedUp, "speed-up", false, "speed up audio by x2 (reduced accuracy)")
	f.BoolVar(&fp.Translate, "translate", false, "translate from source language to english")
	f.BoolVar(&fp.Diarize, "diarize", false, "stereo audio diarization")
	f.BoolVar(&fp.OutputTxt, "output-txt", false, "output result in a text file")
	f.BoolVar(&fp.OutputVtt, "output-vtt", false, "output result in a vtt file")
	f.BoolVar(&fp.OutputSrt, "output-srt", false, "output result in a srt file")
	f.BoolVar(&fp.OutputWts, "output-wts", false, "output script for generating karaoke video")
	f.BoolVar(&fp.OutputCsv, "output-csv", false, "output result in a CSV file")
	f.BoolVar(&fp.PrintSpecial, "print-special", false, "print special tokens")
	f.BoolVar(&fp.PrintColors, "print-colors", false, "print colors")
	f.BoolVar(&fp.PrintProgress, "print-progress", false, "print progress")
	f.BoolVar(&fp.NoTimestamps, "no-timestamps", false, "do not print timestamps")
	f.StringVarP(&fp.Language, "language", "l", fp.Language, `spoken language ("auto" for auto-detect)`)
	f.StringVar(&fp.Prompt, "prompt", "", "initial prompt")
	f.StringVarP(&fp.Model, "model", "m", "", "model path")
	f.StringArrayVarP(&files, "file", "f", nil, "input WAV file path (repeatable)")
	f.StringArrayVarP(&fp.Outputs, "output-file", "o", nil, "output file path without extension (repeatable)")
	return cmd
}

// transcribe runs p and prints the transcript. An interrupt cancels the run
// before its next processing stage.
func (c *cli) transcribe(ctx context.Context, p transcribe.Params) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := transcribe.New(c.engineLoader(),
		transcribe.WithLogger(c.log),
		transcribe.WithDecoder(&wav.Decoder{Stdin: c.stdin, Logger: c.log}),
	)
	results, tok := runner.StartWithToken(ctx, p)

	var res transcribe.Result
	select {
	case res = <-results:
	case <-sigCtx.Done():
		c.log.Warn("interrupt received, stopping run")
		tok.Cancel()
		res = <-results
	}
	if res.Err != nil {
		return res.Err
	}
	_, err := fmt.Fprintln(c.stdout, res.Text)
	return err
}
