package session

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/dataurl"
	"github.com/fpang/photo-enhance/internal/filehandler"
	"github.com/fpang/photo-enhance/internal/transform"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: uint8(40 * x), B: uint8(60 * y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 220, G: 90, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(t *testing.T, name string) *filehandler.UploadedImage {
	t.Helper()
	img, err := filehandler.LoadUpload(name, "image/jpeg", bytes.NewReader(encodeJPEG(t, 2, 2)), 0)
	require.NoError(t, err)
	return img
}

// generator is a fake Gemini endpoint for a real transform.Client.
type generator struct {
	mu    sync.Mutex
	resp  *genai.GenerateContentResponse
	err   error
	calls int
}

func (g *generator) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.resp, g.err
}

func imageResponse(mimeType string, data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}}},
	}}}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
	}}}
}

func newSession(gen transform.ContentGenerator, apiKey string) *Session {
	return New("test", transform.NewWithGenerator(transform.Config{APIKey: apiKey}, gen))
}

func TestEnhanceGrayscaleExportScenario(t *testing.T) {
	enhanced := encodePNG(t, 2, 2)
	gen := &generator{resp: imageResponse("image/png", enhanced)}
	s := newSession(gen, "key")

	s.Upload(upload(t, "portrait.jpg"))

	st, err := s.Enhance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+dataurl.Payload{Data: enhanced}.Base64(), st.Working)
	assert.True(t, st.CanAutoFrame)
	assert.Empty(t, st.Error)

	st, err = s.SelectFilter("grayscale")
	require.NoError(t, err)
	assert.Equal(t, "grayscale(100%)", st.FilterCSS)
	assert.Equal(t, "grayscale(100%)", s.View().Right.Filter)
	assert.Equal(t, "data:image/png;base64,"+dataurl.Payload{Data: enhanced}.Base64(), st.Working, "filter must not touch working bytes")

	dl, err := s.Export()
	require.NoError(t, err)
	assert.True(t, dl.Filtered)
	assert.Equal(t, "image/png", dl.MIMEType)
	assert.NotEqual(t, enhanced, dl.Data)
	assert.Equal(t, "portrait-filtered.png", dl.Name)
}

func TestExportIdentityIsByteIdentical(t *testing.T) {
	enhanced := encodePNG(t, 3, 2)
	s := newSession(&generator{resp: imageResponse("image/png", enhanced)}, "key")
	s.Upload(upload(t, "beach.jpg"))
	_, err := s.Enhance(context.Background())
	require.NoError(t, err)

	dl, err := s.Export()
	require.NoError(t, err)
	assert.False(t, dl.Filtered)
	assert.Equal(t, enhanced, dl.Data)
	assert.Equal(t, "beach-photo.png", dl.Name)
}

func TestExportNameUsesUploadBaseName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"/home/me/pictures/beach.day.jpg", "beach.day-photo.png"},
		{"", "enhanced-photo.png"},
	}
	for _, tt := range tests {
		s := newSession(&generator{resp: imageResponse("image/png", encodePNG(t, 2, 2))}, "key")
		s.Upload(upload(t, tt.name))
		_, err := s.Enhance(context.Background())
		require.NoError(t, err)

		dl, err := s.Export()
		require.NoError(t, err)
		assert.Equal(t, tt.want, dl.Name, tt.name)
	}
}

func TestEnhanceTextOnlyResponse(t *testing.T) {
	gen := &generator{resp: textResponse("I cannot enhance this image.")}
	s := newSession(gen, "key")
	s.Upload(upload(t, "portrait.jpg"))

	st, err := s.Enhance(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRefusal))
	assert.Contains(t, st.Error, "I cannot enhance this image.")
	assert.Equal(t, "refusal", st.ErrorKind)
	assert.Empty(t, st.Working)
	assert.False(t, st.Enhancing)
}

func TestEnhanceWithoutCredential(t *testing.T) {
	gen := &generator{resp: imageResponse("image/png", encodePNG(t, 1, 1))}
	s := newSession(gen, "")
	s.Upload(upload(t, "portrait.jpg"))

	st, err := s.Enhance(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Equal(t, "configuration", st.ErrorKind)
	assert.Zero(t, gen.calls)
}

func TestAutoFrameRequiresWorkingImage(t *testing.T) {
	framed := encodePNG(t, 1, 1)
	gen := &generator{resp: imageResponse("image/png", encodePNG(t, 2, 2))}
	s := newSession(gen, "key")
	s.Upload(upload(t, "portrait.jpg"))

	st, err := s.AutoFrame(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.False(t, st.CanAutoFrame)
	assert.Zero(t, gen.calls)

	_, err = s.Enhance(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Snapshot().CanAutoFrame)

	gen.resp = imageResponse("image/png", framed)
	st, err = s.AutoFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dataurl.Payload{MIMEType: "image/png", Data: framed}.String(), st.Working)
	assert.Equal(t, 2, gen.calls)
}

func TestFailedTransformKeepsPriorWorkingImage(t *testing.T) {
	first := encodePNG(t, 2, 2)
	gen := &generator{resp: imageResponse("image/png", first)}
	s := newSession(gen, "key")
	s.Upload(upload(t, "portrait.jpg"))
	_, err := s.Enhance(context.Background())
	require.NoError(t, err)

	gen.resp = &genai.GenerateContentResponse{}
	st, err := s.AutoFrame(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindEmptyResponse))
	assert.Equal(t, dataurl.Payload{MIMEType: "image/png", Data: first}.String(), st.Working)
	assert.Equal(t, "No image data found in the API response.", st.Error)
}

func TestEnhanceResetsFilterAndClearsError(t *testing.T) {
	gen := &generator{resp: textResponse("no")}
	s := newSession(gen, "key")
	s.Upload(upload(t, "portrait.jpg"))

	st, _ := s.Enhance(context.Background())
	require.NotEmpty(t, st.Error)

	gen.resp = imageResponse("image/png", encodePNG(t, 2, 2))
	st, err := s.Enhance(context.Background())
	require.NoError(t, err)
	_, err = s.SelectFilter("sepia")
	require.NoError(t, err)

	st, err = s.Enhance(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Error)
	assert.Equal(t, "none", st.FilterID)
}

func TestUploadResetsState(t *testing.T) {
	s := newSession(&generator{resp: imageResponse("image/png", encodePNG(t, 2, 2))}, "key")
	s.Upload(upload(t, "one.jpg"))
	_, err := s.Enhance(context.Background())
	require.NoError(t, err)
	_, _ = s.SelectFilter("invert")
	s.MoveSplit(10, 0, 100)

	st := s.Upload(upload(t, "two.jpg"))
	assert.Empty(t, st.Working)
	assert.Equal(t, "none", st.FilterID)
	assert.Equal(t, 50.0, st.Split)
	assert.Equal(t, "two.jpg", st.Original.Name)
	assert.False(t, st.CanAutoFrame)
}

func TestRejectedUploadLeavesStateUntouched(t *testing.T) {
	s := newSession(&generator{}, "key")
	before := s.Upload(upload(t, "one.jpg"))

	_, err := filehandler.LoadUpload("anim.gif", "image/gif", bytes.NewReader([]byte("GIF89a")), 0)
	require.Error(t, err)
	st := s.Fail(err)

	assert.Equal(t, "Please upload a valid image file (JPEG, PNG, WebP).", st.Error)
	assert.Equal(t, before.Original, st.Original)
	assert.Equal(t, before.Generation, st.Generation)
}

func TestSelectUnknownFilter(t *testing.T) {
	s := newSession(&generator{}, "key")
	st, err := s.SelectFilter("lomo")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "none", st.FilterID)
}

func TestMoveSplitClamps(t *testing.T) {
	s := newSession(&generator{}, "key")
	assert.Equal(t, 100.0, s.MoveSplit(900, 100, 400).Split)
	assert.Equal(t, 0.0, s.MoveSplit(-50, 100, 400).Split)
	assert.Equal(t, 0.0, s.MoveSplit(300, 100, 0).Split)
}

func TestExportWithoutWorkingImage(t *testing.T) {
	s := newSession(&generator{}, "key")
	s.Upload(upload(t, "one.jpg"))
	_, err := s.Export()
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestExportRasterizationFailureKeepsState(t *testing.T) {
	garbage := []byte("definitely not an image")
	s := newSession(&generator{resp: imageResponse("image/png", garbage)}, "key")
	s.Upload(upload(t, "one.jpg"))
	_, err := s.Enhance(context.Background())
	require.NoError(t, err)
	_, err = s.SelectFilter("sepia")
	require.NoError(t, err)

	_, err = s.Export()
	require.True(t, apperr.Is(err, apperr.KindRasterization))

	st := s.Snapshot()
	assert.Equal(t, "rasterization", st.ErrorKind)
	assert.Equal(t, dataurl.Payload{MIMEType: "image/png", Data: garbage}.String(), st.Working)
	assert.Equal(t, "sepia", st.FilterID)
}

func TestNextOperationClearsExportError(t *testing.T) {
	garbage := []byte("definitely not an image")
	s := newSession(&generator{resp: imageResponse("image/png", garbage)}, "key")
	s.Upload(upload(t, "one.jpg"))
	_, err := s.Enhance(context.Background())
	require.NoError(t, err)
	_, err = s.SelectFilter("sepia")
	require.NoError(t, err)
	_, err = s.Export()
	require.Error(t, err)
	require.NotEmpty(t, s.Snapshot().Error)

	st, err := s.SelectFilter("none")
	require.NoError(t, err)
	assert.Empty(t, st.Error)

	// A successful identity export clears an error left by an earlier step.
	s.Fail(apperr.New(apperr.KindRasterization, "could not load image for export"))
	require.NotEmpty(t, s.Snapshot().Error)

	dl, err := s.Export()
	require.NoError(t, err)
	assert.Equal(t, garbage, dl.Data)
	st = s.Snapshot()
	assert.Empty(t, st.Error)
	assert.Empty(t, st.ErrorKind)
}

func TestMoveSplitClearsError(t *testing.T) {
	s := newSession(&generator{}, "key")
	s.Fail(apperr.Validation("Upload a photo first."))

	st := s.MoveSplit(150, 100, 200)
	assert.Equal(t, 25.0, st.Split)
	assert.Empty(t, st.Error)
}

// gate is a Transformer that blocks until released.
type gate struct {
	started chan struct{}
	release chan struct{}
	result  dataurl.Payload
	err     error
}

func newGate(result dataurl.Payload) *gate {
	return &gate{started: make(chan struct{}, 4), release: make(chan struct{}), result: result}
}

func (g *gate) Transform(ctx context.Context, _ transform.Request) (dataurl.Payload, error) {
	g.started <- struct{}{}
	<-g.release
	return g.result, g.err
}

func TestStaleResultAfterUploadIsDiscarded(t *testing.T) {
	g := newGate(dataurl.Payload{MIMEType: "image/png", Data: []byte("late")})
	s := New("stale", g)
	s.Upload(upload(t, "one.jpg"))

	done := make(chan error, 1)
	go func() {
		_, err := s.Enhance(context.Background())
		done <- err
	}()
	<-g.started
	assert.True(t, s.Snapshot().Enhancing)

	s.Upload(upload(t, "two.jpg"))
	close(g.release)

	err := <-done
	assert.True(t, apperr.Is(err, apperr.KindStale))
	st := s.Snapshot()
	assert.Empty(t, st.Working)
	assert.Equal(t, "two.jpg", st.Original.Name)
	assert.False(t, st.Enhancing)
}

func TestSecondTransformWhileBusyIsRejected(t *testing.T) {
	g := newGate(dataurl.Payload{MIMEType: "image/png", Data: []byte("ok")})
	s := New("busy", g)
	s.Upload(upload(t, "one.jpg"))

	done := make(chan error, 1)
	go func() {
		_, err := s.Enhance(context.Background())
		done <- err
	}()
	<-g.started

	st, err := s.Enhance(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindBusy))
	assert.Empty(t, st.Error, "a rejected request must not overwrite the running operation's error slot")
	_, err = s.AutoFrame(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindBusy))

	close(g.release)
	require.NoError(t, <-done)
	assert.Equal(t, "data:image/png;base64,b2s=", s.Snapshot().Working)
}

func TestKindInstructions(t *testing.T) {
	assert.Equal(t, "enhance", Enhance.String())
	assert.Equal(t, "auto-frame", AutoFrame.String())
	assert.NotEqual(t, Enhance.Instruction(""), AutoFrame.Instruction(""))
}
