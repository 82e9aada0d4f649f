package normalizer

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/medisur/internal/transcript"
)

// wavClip is the smallest header mimetype recognises as audio/wav.
var wavClip = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00"), make([]byte, 32)...)

type fakeTranscriber struct {
	text string
	err  error

	path      string
	sawFile   bool
	extension string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.path = path
	f.extension = filepath.Ext(path)
	_, statErr := os.Stat(path)
	f.sawFile = statErr == nil
	return f.text, f.err
}

func TestNormalizeText(t *testing.T) {
	n := New(nil, t.TempDir(), time.Second)

	got, err := n.Normalize(context.Background(), RawEvent{Kind: FrameText, Data: []byte("  tos y fiebre hace 4 días \n")})
	require.NoError(t, err)
	assert.Equal(t, "tos y fiebre hace 4 días", got.Text)
	assert.Equal(t, transcript.ModalityText, got.Modality)
}

func TestNormalizeJSONText(t *testing.T) {
	n := New(nil, t.TempDir(), time.Second)

	got, err := n.Normalize(context.Background(), RawEvent{Kind: FrameText, Data: []byte(`{"text":"cough and fever for 4 days"}`)})
	require.NoError(t, err)
	assert.Equal(t, "cough and fever for 4 days", got.Text)
}

func TestNormalizeRejectsUnsupported(t *testing.T) {
	n := New(&fakeTranscriber{text: "never"}, t.TempDir(), time.Second)
	ctx := context.Background()

	cases := map[string]RawEvent{
		"empty text":       {Kind: FrameText, Data: []byte("   ")},
		"empty json text":  {Kind: FrameText, Data: []byte(`{"text":"  "}`)},
		"malformed json":   {Kind: FrameText, Data: []byte(`{"text":`)},
		"json no fields":   {Kind: FrameText, Data: []byte(`{"other":1}`)},
		"empty binary":     {Kind: FrameBinary},
		"binary not audio": {Kind: FrameBinary, Data: []byte("%PDF-1.4 definitely a document")},
		"unknown kind":     {Kind: FrameKind(9), Data: []byte("x")},
	}
	for name, ev := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := n.Normalize(ctx, ev)
			assert.ErrorIs(t, err, ErrUnsupportedPayload)
		})
	}
}

func TestNormalizeAudioRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTranscriber{text: " me duele el pecho "}
	n := New(tr, dir, time.Second)

	got, err := n.Normalize(context.Background(), RawEvent{Kind: FrameBinary, Data: wavClip})
	require.NoError(t, err)
	assert.Equal(t, "me duele el pecho", got.Text)
	assert.Equal(t, transcript.ModalityAudio, got.Modality)

	assert.True(t, tr.sawFile, "transcriber should see the staged file")
	assert.Equal(t, ".wav", tr.extension)
	assert.True(t, strings.HasPrefix(tr.path, dir))
	_, err = os.Stat(tr.path)
	assert.True(t, os.IsNotExist(err), "staged audio must be removed")
}

func TestNormalizeAudioTranscriptionFailure(t *testing.T) {
	dir := t.TempDir()
	cause := errors.New("upstream 503")
	tr := &fakeTranscriber{err: cause}
	n := New(tr, dir, time.Second)

	_, err := n.Normalize(context.Background(), RawEvent{Kind: FrameBinary, Data: wavClip})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	assert.ErrorIs(t, err, cause)

	_, statErr := os.Stat(tr.path)
	assert.True(t, os.IsNotExist(statErr), "staged audio must be removed on failure")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNormalizeAudioEmptyTranscription(t *testing.T) {
	n := New(&fakeTranscriber{text: "  "}, t.TempDir(), time.Second)
	_, err := n.Normalize(context.Background(), RawEvent{Kind: FrameBinary, Data: wavClip})
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
}

func TestNormalizeAudioWithoutTranscriber(t *testing.T) {
	n := New(nil, t.TempDir(), time.Second)
	_, err := n.Normalize(context.Background(), RawEvent{Kind: FrameBinary, Data: wavClip})
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
}

func TestNormalizeBase64AudioInTextFrame(t *testing.T) {
	tr := &fakeTranscriber{text: "dolor de garganta"}
	n := New(tr, t.TempDir(), time.Second)

	frame := `{"bytes":"` + base64.StdEncoding.EncodeToString(wavClip) + `"}`
	got, err := n.Normalize(context.Background(), RawEvent{Kind: FrameText, Data: []byte(frame)})
	require.NoError(t, err)
	assert.Equal(t, "dolor de garganta", got.Text)
	assert.Equal(t, transcript.ModalityAudio, got.Modality)
}

type blockingTranscriber struct{}

func (blockingTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type unresponsiveTranscriber struct {
	release chan struct{}
}

func (u unresponsiveTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	<-u.release
	return "too late", nil
}

func TestNormalizeAudioTranscriptionTimesOut(t *testing.T) {
	dir := t.TempDir()
	n := New(blockingTranscriber{}, dir, 50*time.Millisecond)

	start := time.Now()
	_, err := n.Normalize(context.Background(), RawEvent{Kind: FrameBinary, Data: wavClip})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNormalizeAudioBoundsUnresponsiveBackend(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	n := New(unresponsiveTranscriber{release: release}, t.TempDir(), 50*time.Millisecond)

	_, err := n.Normalize(context.Background(), RawEvent{Kind: FrameBinary, Data: wavClip})
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
