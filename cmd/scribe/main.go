package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"clinical-scribe-service/internal/app"
	"clinical-scribe-service/internal/config"
	"clinical-scribe-service/internal/service/segment"
	"clinical-scribe-service/internal/service/stt/mock"
)

func main() {
	audioPath := flag.String("audio", "", "raw 16-bit LE PCM file; empty runs the scripted encounter")
	sampleRate := flag.Int("rate", 16000, "audio sample rate in Hz")
	duration := flag.Duration("duration", 60*time.Second, "scripted encounter length when no audio file is given")
	flag.Parse()

	cfg := config.Load()
	a := app.New(cfg)

	src, err := buildSource(*audioPath, *sampleRate, *duration)
	if err != nil {
		log.Fatal().Err(err).Str("path", *audioPath).Msg("opening audio source")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := a.NewSession(ctx, src)
	if err != nil {
		log.Fatal().Err(err).Msg("building session")
	}

	a.Start(sess)
	log.Info().Str("sessionId", sess.ID()).Msg("encounter started")

	runDone := make(chan error, 1)
	go func() { runDone <- sess.Run(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		<-runDone
	case err := <-runDone:
		if err != nil {
			log.Error().Err(err).Msg("session ended with error")
		}
	}

	finalizeCtx, finalizeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer finalizeCancel()

	transcript, entities := sess.Finalize(finalizeCtx)
	log.Info().
		Int("spans", len(transcript)).
		Int("entities", len(entities)).
		Msg("encounter finalized")

	if a.Archive != nil {
		if err := a.Archive.Save(finalizeCtx, sess.ID(), transcript, entities); err != nil {
			log.Error().Err(err).Msg("archiving session")
		}
	}

	a.Shutdown(finalizeCtx)
}

func buildSource(path string, rate int, duration time.Duration) (segment.Source, error) {
	if path == "" {
		return mock.NewAudioSource(rate, duration), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileSource{
		rate: rate,
		r:    bufio.NewReaderSize(f, 1<<16),
		c:    f,
	}, nil
}

// fileSource reads raw 16-bit little-endian PCM in quarter-second chunks.
type fileSource struct {
	rate int
	r    *bufio.Reader
	c    io.Closer
}

func (s *fileSource) SampleRate() int { return s.rate }

func (s *fileSource) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, s.rate/4*2)
	n, err := io.ReadFull(s.r, buf)
	if n == 0 {
		s.c.Close()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	samples := make([]int16, n/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		s.c.Close()
	}
	return samples, nil
}
