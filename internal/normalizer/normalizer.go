// Package normalizer turns inbound channel frames into a single text
// contribution, transcribing audio when needed.
package normalizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/ziadkadry99/medisur/internal/metrics"
	"github.com/ziadkadry99/medisur/internal/transcript"
)

var (
	// ErrUnsupportedPayload is returned for frames that are neither usable
	// text nor recognised audio.
	ErrUnsupportedPayload = errors.New("unsupported payload")
	// ErrTranscriptionFailed wraps any speech-to-text failure.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// FrameKind distinguishes text frames from binary frames.
type FrameKind int

const (
	FrameText FrameKind = iota + 1
	FrameBinary
)

// RawEvent is one inbound unit as received from the channel.
type RawEvent struct {
	Kind FrameKind
	Data []byte
}

// Normalized is the canonical text form of an inbound unit.
type Normalized struct {
	Text     string
	Modality transcript.Modality
}

// Transcriber converts an audio file on disk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Normalizer converts RawEvents. Audio is staged in dir (the OS temp dir
// when empty) for the duration of the transcription call.
type Normalizer struct {
	transcriber Transcriber
	dir         string
	timeout     time.Duration
}

// New creates a Normalizer. A nil transcriber rejects every audio frame
// with ErrTranscriptionFailed. Each transcription is abandoned after
// timeout (30s when zero).
func New(transcriber Transcriber, dir string, timeout time.Duration) *Normalizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Normalizer{transcriber: transcriber, dir: dir, timeout: timeout}
}

// textFrame is the JSON envelope a text frame may carry. Bytes arrives
// base64-encoded.
type textFrame struct {
	Text  *string `json:"text"`
	Bytes []byte  `json:"bytes"`
}

// Normalize converts ev into text.
func (n *Normalizer) Normalize(ctx context.Context, ev RawEvent) (*Normalized, error) {
	switch ev.Kind {
	case FrameText:
		return n.normalizeText(ctx, ev.Data)
	case FrameBinary:
		return n.normalizeAudio(ctx, ev.Data)
	default:
		return nil, fmt.Errorf("%w: unknown frame kind %d", ErrUnsupportedPayload, ev.Kind)
	}
}

func (n *Normalizer) normalizeText(ctx context.Context, data []byte) (*Normalized, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var frame textFrame
		if err := json.Unmarshal(trimmed, &frame); err != nil {
			return nil, fmt.Errorf("%w: malformed JSON frame", ErrUnsupportedPayload)
		}
		switch {
		case frame.Text != nil:
			trimmed = []byte(strings.TrimSpace(*frame.Text))
		case len(frame.Bytes) > 0:
			return n.normalizeAudio(ctx, frame.Bytes)
		default:
			return nil, fmt.Errorf("%w: frame has neither text nor bytes", ErrUnsupportedPayload)
		}
	}

	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty text", ErrUnsupportedPayload)
	}
	return &Normalized{Text: string(trimmed), Modality: transcript.ModalityText}, nil
}

// audioType reports whether data is an audio container and the file
// extension the transcription backend expects for it.
func audioType(data []byte) (string, bool) {
	m := mimetype.Detect(data)
	for t := m; t != nil; t = t.Parent() {
		if strings.HasPrefix(t.String(), "audio/") {
			return m.Extension(), true
		}
	}
	switch {
	case m.Is("video/webm"), m.Is("application/ogg"), m.Is("video/mp4"):
		return m.Extension(), true
	}
	return "", false
}

func (n *Normalizer) normalizeAudio(ctx context.Context, data []byte) (*Normalized, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrUnsupportedPayload)
	}
	ext, ok := audioType(data)
	if !ok {
		return nil, fmt.Errorf("%w: binary frame is not audio (%s)", ErrUnsupportedPayload, mimetype.Detect(data).String())
	}
	if n.transcriber == nil {
		metrics.TranscriptionsTotal.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: no transcription backend configured", ErrTranscriptionFailed)
	}

	text, err := n.transcribeScoped(ctx, data, ext)
	if errors.Is(err, context.DeadlineExceeded) {
		metrics.TranscriptionsTotal.WithLabelValues("timeout").Inc()
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	if err != nil {
		metrics.TranscriptionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.TranscriptionsTotal.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("%w: empty transcription", ErrTranscriptionFailed)
	}

	metrics.TranscriptionsTotal.WithLabelValues("ok").Inc()
	return &Normalized{Text: text, Modality: transcript.ModalityAudio}, nil
}

type transcription struct {
	text string
	err  error
}

// transcribeScoped stages data in a temp file that is removed on every
// return path. The call is bounded by n.timeout even when the backend
// ignores its context.
func (n *Normalizer) transcribeScoped(ctx context.Context, data []byte, ext string) (string, error) {
	f, err := os.CreateTemp(n.dir, "utterance-*"+ext)
	if err != nil {
		return "", fmt.Errorf("staging audio: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("removing staged audio")
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("staging audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("staging audio: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	done := make(chan transcription, 1)
	go func() {
		text, err := n.transcriber.Transcribe(ctx, path)
		done <- transcription{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
