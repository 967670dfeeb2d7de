package convert

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresfredes/pdf2ppt/internal/domain"
	"github.com/andresfredes/pdf2ppt/internal/layout"
	"github.com/andresfredes/pdf2ppt/internal/pptx"
)

type fakeDoc struct {
	pages  int
	closed *atomic.Int32
}

func (d *fakeDoc) NumPages() int { return d.pages }

func (d *fakeDoc) RenderPage(int, float64) (image.Image, error) {
	return nil, errors.New("not used")
}

func (d *fakeDoc) Close() error {
	d.closed.Add(1)
	return nil
}

// fakeRasterizer yields one page per ratio.
type fakeRasterizer struct {
	ratios  []float64
	failAt  int
	panicAt int
	openErr error
	closed  atomic.Int32
}

func newFakeRasterizer(ratios ...float64) *fakeRasterizer {
	return &fakeRasterizer{ratios: ratios, failAt: -1, panicAt: -1}
}

func (r *fakeRasterizer) Open(ctx context.Context, path string, showAnnotations bool) (domain.Document, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	return &fakeDoc{pages: len(r.ratios), closed: &r.closed}, nil
}

func (r *fakeRasterizer) Rasterize(doc domain.Document, pageIndex int, cfg domain.ConversionConfig) (domain.RasterizedPage, error) {
	if pageIndex == r.failAt {
		return domain.RasterizedPage{}, domain.PageRenderError(pageIndex, "failed to render page", errors.New("corrupt content stream"))
	}
	if pageIndex == r.panicAt {
		panic("renderer blew up")
	}
	ratio := r.ratios[pageIndex]
	return domain.RasterizedPage{
		PageIndex:   pageIndex,
		PixelWidth:  int(ratio * 900),
		PixelHeight: 900,
		AspectRatio: ratio,
		Format:      domain.ImageFormatPNG,
		ImageBytes:  []byte(fmt.Sprintf("page-%d", pageIndex)),
	}, nil
}

func writeTemplate(t *testing.T, dir string) string {
	t.Helper()
	data, err := pptx.DefaultTemplate()
	require.NoError(t, err)
	path := filepath.Join(dir, "template.pptx")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestBuilder(t *testing.T, r PageRasterizer) (*Builder, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := NewBuilder(r, BuilderConfig{
		Canvas:           layout.DefaultCanvas,
		Classifier:       layout.DefaultClassifier(),
		TemplatePath:     writeTemplate(t, dir),
		BlankLayoutIndex: pptx.BlankLayoutIndex,
	}, nil)
	require.NoError(t, err)
	return b, dir
}

func readDeck(t *testing.T, path string) []*pptx.Slide {
	t.Helper()
	pres, err := pptx.Open(path)
	require.NoError(t, err)
	return pres.Slides()
}

func TestBuild_OneSlidePerPageInOrder(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1.0, 16.0/9.0, 2.5))
	job := domain.NewJob(filepath.Join(dir, "lecture.pdf"), domain.DefaultConversionConfig())

	out, pages, err := b.Build(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lecture.pptx"), out)
	assert.Equal(t, 3, pages)

	slides := readDeck(t, out)
	require.Len(t, slides, 3)

	want := []struct{ x, y, cx, cy float64 }{
		{6.125, 0, 15.75, 15.75},
		{0, 0, 28, 15.75},
		{0, 2.275, 28, 11.2},
	}
	for i, s := range slides {
		pics := s.Pictures()
		require.Len(t, pics, 1, "slide %d", i)
		assert.Equal(t, pptx.Cm(want[i].x), pics[0].X, "slide %d", i)
		assert.Equal(t, pptx.Cm(want[i].y), pics[0].Y, "slide %d", i)
		assert.Equal(t, pptx.Cm(want[i].cx), pics[0].CX, "slide %d", i)
		assert.Equal(t, pptx.Cm(want[i].cy), pics[0].CY, "slide %d", i)
		assert.Equal(t, fmt.Sprintf("ppt/slides/slide%d.xml", i+1), s.Part())
	}

	pres, err := pptx.Open(out)
	require.NoError(t, err)
	cx, cy := pres.SlideSize()
	assert.Equal(t, pptx.Cm(28), cx)
	assert.Equal(t, pptx.Cm(15.75), cy)
}

func TestBuild_Idempotent(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(0.7, 1.77, 3.1, 1.0))
	job := domain.NewJob(filepath.Join(dir, "deck.pdf"), domain.DefaultConversionConfig())

	out, _, err := b.Build(context.Background(), job, nil)
	require.NoError(t, err)
	first := readDeck(t, out)

	out2, _, err := b.Build(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, out, out2)
	second := readDeck(t, out2)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Pictures(), second[i].Pictures())
	}
}

func TestBuild_RectsStayOnCanvas(t *testing.T) {
	ratios := []float64{0.05, 0.3333, 1.7499, 1.75, 1.7777, 1.8, 1.8001, 7, 11.9}
	b, dir := newTestBuilder(t, newFakeRasterizer(ratios...))
	job := domain.NewJob(filepath.Join(dir, "odd.pdf"), domain.DefaultConversionConfig())

	out, _, err := b.Build(context.Background(), job, nil)
	require.NoError(t, err)

	w, h := pptx.Cm(28), pptx.Cm(15.75)
	for i, s := range readDeck(t, out) {
		p := s.Pictures()[0]
		assert.GreaterOrEqual(t, int64(p.X), int64(0), "page %d", i)
		assert.GreaterOrEqual(t, int64(p.Y), int64(0), "page %d", i)
		assert.LessOrEqual(t, int64(p.X+p.CX), int64(w), "page %d", i)
		assert.LessOrEqual(t, int64(p.Y+p.CY), int64(h), "page %d", i)
	}
}

func TestBuild_ExactDetection(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1.78))
	cfg := domain.DefaultConversionConfig()
	cfg.Use16by9Detection = false
	job := domain.NewJob(filepath.Join(dir, "deck.pdf"), cfg)

	out, _, err := b.Build(context.Background(), job, nil)
	require.NoError(t, err)

	// 1.78 is above 28/15.75, so it is laid out as wide instead of filling the slide
	p := readDeck(t, out)[0].Pictures()[0]
	assert.Equal(t, pptx.Cm(28), p.CX)
	assert.Less(t, int64(p.CY), int64(pptx.Cm(15.75)))
	assert.Greater(t, int64(p.Y), int64(0))
}

func TestBuild_Events(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1, 1))
	job := domain.NewJob(filepath.Join(dir, "deck.pdf"), domain.DefaultConversionConfig())
	events := make(chan domain.StreamEvent, 16)

	_, _, err := b.Build(context.Background(), job, events)
	require.NoError(t, err)
	close(events)

	var types []domain.EventType
	for e := range events {
		assert.Equal(t, job.ID, e.JobID)
		types = append(types, e.Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventStart,
		domain.EventPageProcessing, domain.EventPageComplete,
		domain.EventPageProcessing, domain.EventPageComplete,
		domain.EventComplete,
	}, types)
}

func TestBuild_FullEventChannelDoesNotBlock(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1, 1, 1))
	job := domain.NewJob(filepath.Join(dir, "deck.pdf"), domain.DefaultConversionConfig())

	events := make(chan domain.StreamEvent)
	_, pages, err := b.Build(context.Background(), job, events)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestBuild_ZeroPages(t *testing.T) {
	r := newFakeRasterizer()
	b, dir := newTestBuilder(t, r)
	job := domain.NewJob(filepath.Join(dir, "empty.pdf"), domain.DefaultConversionConfig())

	_, _, err := b.Build(context.Background(), job, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeSourceUnreadable, domain.TypeOf(err))
	assert.Equal(t, int32(1), r.closed.Load())
	assert.NoFileExists(t, job.OutputPath())
}

func TestBuild_InvalidConfig(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1))
	cfg := domain.DefaultConversionConfig()
	cfg.ZoomFactor = -1
	job := domain.NewJob(filepath.Join(dir, "deck.pdf"), cfg)

	_, _, err := b.Build(context.Background(), job, nil)
	assert.Equal(t, domain.ErrorTypeValidation, domain.TypeOf(err))
}

func TestNewBuilder_TemplateMissing(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.pptx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0o644))

	tests := []struct {
		name  string
		path  string
		index int
	}{
		{"not configured", "", 6},
		{"missing file", filepath.Join(dir, "none.pptx"), 6},
		{"corrupt file", corrupt, 6},
		{"no such layout", writeTemplate(t, dir), 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(newFakeRasterizer(1), BuilderConfig{
				Canvas:           layout.DefaultCanvas,
				Classifier:       layout.DefaultClassifier(),
				TemplatePath:     tt.path,
				BlankLayoutIndex: tt.index,
			}, nil)
			require.Error(t, err)
			assert.Equal(t, domain.ErrorTypeTemplateMissing, domain.TypeOf(err))
		})
	}
}

func TestNewBuilder_RejectsCanvas(t *testing.T) {
	_, err := NewBuilder(newFakeRasterizer(1), BuilderConfig{
		Canvas:       layout.Canvas{Width: 25.4, Height: 19.05},
		Classifier:   layout.DefaultClassifier(),
		TemplatePath: writeTemplate(t, t.TempDir()),
	}, nil)
	assert.Equal(t, domain.ErrorTypeConfig, domain.TypeOf(err))
}

func TestWorker_Success(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1, 2, 3))
	job := domain.NewJob(filepath.Join(dir, "deck.pdf"), domain.DefaultConversionConfig())
	w := NewWorker(b, job)
	assert.Equal(t, domain.StateIdle, w.State())

	ch, err := w.Start(context.Background())
	require.NoError(t, err)

	outcome := <-ch
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, job.ID, outcome.JobID)
	assert.Equal(t, job.OutputPath(), outcome.OutputPath)
	assert.Equal(t, 3, outcome.Pages)
	assert.FileExists(t, outcome.OutputPath)

	_, open := <-ch
	assert.False(t, open, "outcome channel must be closed after delivery")
	assert.Equal(t, domain.StateCompleted, w.State())

	got, ok := w.Outcome()
	require.True(t, ok)
	assert.Equal(t, outcome, got)
}

func TestWorker_PageFailureLeavesNoOutput(t *testing.T) {
	r := newFakeRasterizer(1, 1, 1, 1, 1)
	r.failAt = 3
	b, dir := newTestBuilder(t, r)
	job := domain.NewJob(filepath.Join(dir, "report.pdf"), domain.DefaultConversionConfig())
	events := make(chan domain.StreamEvent, 32)

	outcome := NewWorker(b, job, WithEvents(events)).Run(context.Background())

	assert.False(t, outcome.Succeeded())
	assert.Equal(t, domain.OutcomeFailure, outcome.Kind)
	assert.Contains(t, outcome.ErrorDetail, "page 3")
	idx, ok := domain.FailedPage(outcome.Err)
	require.True(t, ok)
	assert.Equal(t, 3, idx)

	assert.NoFileExists(t, job.OutputPath())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
	assert.Equal(t, int32(1), r.closed.Load())

	close(events)
	var last domain.StreamEvent
	for e := range events {
		last = e
	}
	assert.Equal(t, domain.EventError, last.Type)
	assert.Equal(t, 4, last.PageNumber)
}

func TestWorker_PanicBecomesFailure(t *testing.T) {
	r := newFakeRasterizer(1, 1)
	r.panicAt = 1
	b, dir := newTestBuilder(t, r)
	job := domain.NewJob(filepath.Join(dir, "deck.pdf"), domain.DefaultConversionConfig())
	w := NewWorker(b, job)

	outcome := w.Run(context.Background())
	assert.False(t, outcome.Succeeded())
	assert.Contains(t, outcome.ErrorDetail, "renderer blew up")
	assert.Equal(t, domain.StateFailed, w.State())
	assert.NoFileExists(t, job.OutputPath())
	assert.Equal(t, int32(1), r.closed.Load(), "document must be closed on panic")
}

func TestWorker_SecondStartRejected(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1))
	w := NewWorker(b, domain.NewJob(filepath.Join(dir, "deck.pdf"), domain.DefaultConversionConfig()))

	ch, err := w.Start(context.Background())
	require.NoError(t, err)

	_, err = w.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	<-ch
	_, err = w.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestWorker_IgnoresCancellation(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1, 1))
	job := domain.NewJob(filepath.Join(dir, "deck.pdf"), domain.DefaultConversionConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := NewWorker(b, job).Run(ctx)
	assert.True(t, outcome.Succeeded())
}

type recordingRecorder struct {
	mu       sync.Mutex
	calls    []string
	failWith error
}

func (r *recordingRecorder) JobStarted(ctx context.Context, job domain.ConversionJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "started:"+job.ID.String())
	return r.failWith
}

func (r *recordingRecorder) JobFinished(ctx context.Context, outcome domain.ConversionOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "finished:"+string(outcome.Kind))
	return r.failWith
}

func TestWorker_RecorderAndCallback(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1))
	job := domain.NewJob(filepath.Join(dir, "deck.pdf"), domain.DefaultConversionConfig())

	rec := &recordingRecorder{failWith: errors.New("disk full")}
	var callbacks atomic.Int32
	var seen domain.ConversionOutcome

	w := NewWorker(b, job, WithRecorder(rec), OnOutcome(func(o domain.ConversionOutcome) {
		callbacks.Add(1)
		seen = o
	}))
	outcome := w.Run(context.Background())

	// recorder errors never turn a success into a failure
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, int32(1), callbacks.Load())
	assert.Equal(t, outcome, seen)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"started:" + job.ID.String(), "finished:success"}, rec.calls)
}

func TestWorker_ConcurrentJobsAreIndependent(t *testing.T) {
	b, dir := newTestBuilder(t, newFakeRasterizer(1, 2))

	var wg sync.WaitGroup
	outcomes := make([]domain.ConversionOutcome, 4)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job := domain.NewJob(filepath.Join(dir, fmt.Sprintf("deck%d.pdf", i)), domain.DefaultConversionConfig())
			outcomes[i] = NewWorker(b, job).Run(context.Background())
		}(i)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("jobs did not finish")
	}

	for i, o := range outcomes {
		assert.True(t, o.Succeeded(), "job %d: %s", i, o.ErrorDetail)
		assert.Len(t, readDeck(t, o.OutputPath), 2)
	}
}
