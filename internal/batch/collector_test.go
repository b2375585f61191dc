package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go-roi-inspector/internal/decode"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/observer"
	"go-roi-inspector/internal/raster"
	"go-roi-inspector/pkg/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder produces a uniform 8x8 image whose value is the first byte
// of the file.
type fakeDecoder struct {
	mu      sync.Mutex
	calls   []string
	delays  map[string]time.Duration
	failing map[string]bool
	onCall  func(name string)
}

func (d *fakeDecoder) Name() string { return "fake" }

func (d *fakeDecoder) Decode(ctx context.Context, path string, cfg decode.Config) (*decode.Decoded, error) {
	name := filepath.Base(path)
	d.mu.Lock()
	d.calls = append(d.calls, name)
	delay := d.delays[name]
	fail := d.failing[name]
	onCall := d.onCall
	d.mu.Unlock()

	if onCall != nil {
		onCall(name)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, apperrors.NewDecodeFailedError(path, ctx.Err())
		}
	}
	if fail {
		return nil, errors.New("corrupt sensor data")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewDecodeFailedError(path, err)
	}
	img := raster.NewRGB(8, 8, cfg.BitDepth)
	for i := range img.Pix {
		img.Pix[i] = uint16(data[0])
	}
	return &decode.Decoded{RGB: img}, nil
}

func (d *fakeDecoder) called() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type fixedResolver map[string]time.Time

func (r fixedResolver) Resolve(path string) time.Time { return r[filepath.Base(path)] }

func writeImages(t *testing.T, files map[string]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, v := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{v}, 0o644))
	}
	return dir
}

func rawFolder(t *testing.T) string {
	return writeImages(t, map[string]byte{"c.raw": 30, "a.raw": 10, "b.raw": 20})
}

func rectRegion(t *testing.T) []region.Region {
	r, err := region.New(1, region.Rect{X: 0, Y: 0, W: 4, H: 4})
	require.NoError(t, err)
	return []region.Region{r}
}

func rawOptions() Options {
	return DefaultOptions().WithExtensions(".raw")
}

func TestCollectOrdersRowsByFilename(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			// completion order is c, b, a when run concurrently
			dec := &fakeDecoder{delays: map[string]time.Duration{"a.raw": 80 * time.Millisecond, "b.raw": 40 * time.Millisecond}}
			c := NewCollector(dec, nil, fixedResolver{}, nil)

			res, err := c.Collect(context.Background(), rawFolder(t), rectRegion(t), decode.DefaultConfig(), rawOptions().WithWorkers(workers))
			require.NoError(t, err)

			assert.Equal(t, []string{"a.raw", "b.raw", "c.raw"}, res.Table.Images())
			assert.Equal(t, []string{"a.raw", "b.raw", "c.raw"}, res.Images)
			require.Equal(t, 3, res.Table.Len())
			for i, want := range []float64{10, 20, 30} {
				row := res.Table.Rows[i]
				assert.Equal(t, want, row.MeanR)
				assert.Equal(t, 0.0, row.StdB)
				assert.Equal(t, 16, row.Samples)
				assert.Equal(t, "rect", row.Shape)
				assert.Equal(t, `{"x":0,"y":0,"w":4,"h":4}`, row.Parameters)
			}
			assert.Empty(t, res.Failures)
		})
	}
}

func TestCollectTimestampsAndEmptyRegions(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	outside, err := region.New(2, region.Circle{CX: -100, CY: -100, R: 3})
	require.NoError(t, err)
	regions := append(rectRegion(t), outside)

	c := NewCollector(&fakeDecoder{}, nil, fixedResolver{"a.raw": ts}, nil)
	res, err := c.Collect(context.Background(), rawFolder(t), regions, decode.DefaultConfig(), rawOptions())
	require.NoError(t, err)

	require.Equal(t, 6, res.Table.Len())
	assert.Equal(t, ts, res.Table.Rows[0].Timestamp)
	assert.Equal(t, []int{1, 2}, []int{res.Table.Rows[0].ID, res.Table.Rows[1].ID})
	assert.True(t, res.Table.Rows[1].Empty)
	assert.True(t, math.IsNaN(res.Table.Rows[1].MeanG))
	assert.Equal(t, "2024-03-01 12:00:00", res.Table.Records()[0][1])
}

func TestCollectNoImagesFound(t *testing.T) {
	c := NewCollector(&fakeDecoder{}, nil, fixedResolver{}, nil)

	empty := writeImages(t, map[string]byte{"notes.txt": 1})
	_, err := c.Collect(context.Background(), empty, rectRegion(t), decode.DefaultConfig(), rawOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNoImagesFound))

	_, err = c.Collect(context.Background(), filepath.Join(empty, "missing"), rectRegion(t), decode.DefaultConfig(), rawOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNoImagesFound))
}

func TestCollectRejectsInvalidRegionsBeforeDecoding(t *testing.T) {
	dec := &fakeDecoder{}
	c := NewCollector(dec, nil, fixedResolver{}, nil)

	bad := region.Region{ID: 1, Shape: region.ShapePolygon, Params: []byte(`{"points":[[0,0],[1,1]]}`)}
	_, err := c.Collect(context.Background(), rawFolder(t), []region.Region{bad}, decode.DefaultConfig(), rawOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))

	_, err = c.Collect(context.Background(), rawFolder(t), nil, decode.DefaultConfig(), rawOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))

	_, err = c.Collect(context.Background(), rawFolder(t), rectRegion(t), decode.DefaultConfig().WithBitDepth(12), rawOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))

	assert.Empty(t, dec.called())
}

func TestCollectFailFast(t *testing.T) {
	dec := &fakeDecoder{failing: map[string]bool{"b.raw": true}}
	c := NewCollector(dec, nil, fixedResolver{}, nil)
	folder := rawFolder(t)

	res, err := c.Collect(context.Background(), folder, rectRegion(t), decode.DefaultConfig(), rawOptions())
	require.Error(t, err)
	assert.Nil(t, res)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeDecodeFailed, appErr.Type)
	assert.Equal(t, filepath.Join(folder, "b.raw"), appErr.Path)
	assert.Equal(t, []string{"a.raw", "b.raw"}, dec.called())
}

func TestCollectFailFastPooled(t *testing.T) {
	dec := &fakeDecoder{
		failing: map[string]bool{"b.raw": true},
		delays:  map[string]time.Duration{"c.raw": time.Second},
	}
	c := NewCollector(dec, nil, fixedResolver{}, nil)
	folder := rawFolder(t)

	start := time.Now()
	_, err := c.Collect(context.Background(), folder, rectRegion(t), decode.DefaultConfig(), rawOptions().WithWorkers(3))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(folder, "b.raw"), appErr.Path)
	// the slow image is abandoned once b fails
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestCollectContinueOnError(t *testing.T) {
	for _, workers := range []int{1, 2} {
		dec := &fakeDecoder{failing: map[string]bool{"b.raw": true}}
		publisher := observer.NewEventPublisher()
		metrics := observer.NewMetricsObserver()
		publisher.Subscribe(metrics)
		c := NewCollector(dec, nil, fixedResolver{}, publisher)
		folder := rawFolder(t)

		res, err := c.Collect(context.Background(), folder, rectRegion(t), decode.DefaultConfig(),
			rawOptions().WithWorkers(workers).WithContinueOnError(true))
		require.NoError(t, err)
		publisher.Wait()

		assert.Equal(t, []string{"a.raw", "c.raw"}, res.Table.Images())
		require.Len(t, res.Failures, 1)
		assert.Equal(t, filepath.Join(folder, "b.raw"), res.Failures[0].Path)
		assert.Contains(t, res.Failures[0].Error, "corrupt sensor data")

		got := metrics.GetMetrics()
		assert.Equal(t, int64(2), got["images_measured"])
		assert.Equal(t, int64(1), got["images_failed"])
		assert.Equal(t, int64(1), got["batches"])
	}
}

// eventLog records published events.
type eventLog struct {
	mu     sync.Mutex
	events []observer.BatchEvent
}

func (l *eventLog) OnEvent(ctx context.Context, event observer.BatchEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) GetObserverName() string { return "event_log" }

func (l *eventLog) find(t observer.EventType) (observer.BatchEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.EventType == t {
			return e, true
		}
	}
	return observer.BatchEvent{}, false
}

func TestCollectReportsPoolStats(t *testing.T) {
	for _, workers := range []int{1, 2} {
		publisher := observer.NewEventPublisher()
		log := &eventLog{}
		publisher.Subscribe(log)
		c := NewCollector(&fakeDecoder{}, nil, fixedResolver{}, publisher)

		_, err := c.Collect(context.Background(), rawFolder(t), rectRegion(t), decode.DefaultConfig(), rawOptions().WithWorkers(workers))
		require.NoError(t, err)
		publisher.Wait()

		done, ok := log.find(observer.BatchCompleted)
		require.True(t, ok)
		if workers == 1 {
			assert.NotContains(t, done.Metadata, "pool_jobs")
			continue
		}
		assert.Equal(t, 2, done.Metadata["pool_workers"])
		assert.Equal(t, int64(3), done.Metadata["pool_jobs"])
		assert.Equal(t, int64(3), done.Metadata["pool_completed"])
	}
}

func TestCollectContinueOnErrorAllFail(t *testing.T) {
	dec := &fakeDecoder{failing: map[string]bool{"a.raw": true, "b.raw": true, "c.raw": true}}
	c := NewCollector(dec, nil, fixedResolver{}, nil)
	folder := rawFolder(t)

	_, err := c.Collect(context.Background(), folder, rectRegion(t), decode.DefaultConfig(), rawOptions().WithContinueOnError(true))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeDecodeFailed, appErr.Type)
	assert.Equal(t, filepath.Join(folder, "a.raw"), appErr.Path)
}

func TestCollectCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dec := &fakeDecoder{onCall: func(name string) {
		if name == "a.raw" {
			cancel()
		}
	}}
	c := NewCollector(dec, nil, fixedResolver{}, nil)

	_, err := c.Collect(ctx, rawFolder(t), rectRegion(t), decode.DefaultConfig(), rawOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// b and c are never started
	assert.Equal(t, []string{"a.raw"}, dec.called())

	_, err = c.Collect(ctx, rawFolder(t), rectRegion(t), decode.DefaultConfig(), rawOptions().WithWorkers(2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	dec := &fakeDecoder{delays: map[string]time.Duration{"a.raw": time.Second}}
	c := NewCollector(dec, nil, fixedResolver{}, nil)

	_, err := c.Collect(ctx, rawFolder(t), rectRegion(t), decode.DefaultConfig(), rawOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
}

func TestCollectWithoutDecoder(t *testing.T) {
	_, err := NewCollector(nil, nil, nil, nil).Collect(context.Background(), t.TempDir(), rectRegion(t), decode.DefaultConfig(), Options{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}
