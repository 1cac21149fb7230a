package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rm-hull/png-optimizer/internal/config"
	"github.com/rm-hull/png-optimizer/internal/manifest"
	"github.com/rm-hull/png-optimizer/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisyPNG(t *testing.T, path string, seed int64) {
	t.Helper()
	rnd := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			img.Set(x, y, color.RGBA{uint8(rnd.Intn(256)), uint8(rnd.Intn(256)), uint8(rnd.Intn(256)), 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// optimalPNG writes a small paletted image already encoded the way the
// optimizer would encode it, so no candidate can beat it.
func optimalPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 32, 32), color.Palette{color.Black, color.White})
	for i := 0; i < 32; i++ {
		img.SetColorIndex(i, i, 1)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	require.NoError(t, enc.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func testConfig(dir string, write bool) config.Config {
	cfg := config.Default()
	cfg.Targets = []string{dir}
	cfg.Manifest = filepath.Join(dir, ".manifest.json")
	cfg.Write = write
	cfg.Workers = 4
	return cfg
}

func run(t *testing.T, cfg config.Config, baseDir string, opts ...Option) (*RunStats, string) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithBaseDir(baseDir)}, opts...)
	p, err := NewProcessor(cfg, &out, opts...)
	require.NoError(t, err)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	return stats, out.String()
}

func fileResult(t *testing.T, stats *RunStats, key string) FileResult {
	t.Helper()
	for _, fr := range stats.Files {
		if fr.Key == key {
			return fr
		}
	}
	t.Fatalf("no result for %s", key)
	return FileResult{}
}

func TestRun_WriteThenSkipByManifest(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"a.png", "b.png", "nested/c.png"} {
		noisyPNG(t, filepath.Join(dir, name), int64(i))
	}
	cfg := testConfig(dir, true)

	first, out := run(t, cfg, dir)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 3, first.Replaced)
	assert.Equal(t, 0, first.Errored)
	assert.Greater(t, first.Saved(), int64(0))
	assert.Contains(t, out, "replaced=3 skipped=0 errors=0")
	assert.Contains(t, out, "mode=WRITE")
	for _, key := range []string{"a.png", "b.png", "nested/c.png"} {
		fr := fileResult(t, first, key)
		assert.Equal(t, Replaced, fr.State)
		assert.Equal(t, selector.Quantized, fr.Outcome.Strategy)
	}

	m := manifest.NewStore(cfg.Manifest, true).Load()
	sig := manifest.ComputeSignature(cfg.Policy())
	assert.Equal(t, sig, m.PolicySignature)
	fi, err := os.Stat(filepath.Join(dir, "nested", "c.png"))
	require.NoError(t, err)
	assert.True(t, m.IsSkippable("nested/c.png", fi.Size(), fi.ModTime().UnixNano(), sig, false))

	second, _ := run(t, cfg, dir)
	assert.Equal(t, 3, second.SkippedByManifest)
	assert.Equal(t, 0, second.Replaced)
	assert.Equal(t, int64(0), second.Saved())
}

func TestRun_ForcedRerunNeverDegradesFurther(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	noisyPNG(t, path, 42)
	cfg := testConfig(dir, true)

	first, _ := run(t, cfg, dir)
	require.Equal(t, 1, first.Replaced)
	optimized, err := os.ReadFile(path)
	require.NoError(t, err)

	cfg.Force = true
	second, _ := run(t, cfg, dir)
	fr := fileResult(t, second, "photo.png")
	assert.Equal(t, SkippedByPolicy, fr.State)
	assert.NotContains(t, fr.Outcome.Considered, selector.Quantized, "paletted output is never quantized again")
	assert.Equal(t, 0, second.Replaced)

	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, optimized, again)
}

func TestRun_DryRunChangesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	noisyPNG(t, path, 1)
	original, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg := testConfig(dir, false)

	stats, out := run(t, cfg, dir)

	fr := fileResult(t, stats, "a.png")
	assert.Equal(t, WouldReplace, fr.State)
	assert.Equal(t, 1, stats.Replaced)
	assert.Equal(t, fr.Outcome.ChosenSize, stats.BytesAfter)
	assert.Contains(t, out, "mode=DRY-RUN")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, after)
	_, err = os.Stat(cfg.Manifest)
	assert.True(t, os.IsNotExist(err), "dry run must not create the manifest")
}

func TestRun_ErrorsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png at all"), 0o644))
	noisyPNG(t, filepath.Join(dir, "good.png"), 3)
	cfg := testConfig(dir, true)

	stats, out := run(t, cfg, dir)

	assert.Equal(t, 1, stats.Errored)
	assert.Equal(t, 1, stats.Replaced)
	assert.Equal(t, 2, stats.ExitCode())
	assert.Equal(t, Errored, fileResult(t, stats, "broken.png").State)
	assert.Contains(t, out, "error: broken.png")

	m := manifest.NewStore(cfg.Manifest, true).Load()
	assert.NotContains(t, m.Files, "broken.png")
	assert.Contains(t, m.Files, "good.png")
}

func TestRun_WriteFailureLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	noisyPNG(t, path, 5)
	original, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg := testConfig(dir, true)

	failing := WithWriteFile(func(string, []byte) error { return errors.New("disk full") })
	stats, _ := run(t, cfg, dir, failing)

	fr := fileResult(t, stats, "a.png")
	assert.Equal(t, Errored, fr.State)
	assert.Equal(t, "disk full", fr.Outcome.Reason)
	assert.Equal(t, stats.BytesBefore, stats.BytesAfter)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, after)
	m := manifest.NewStore(cfg.Manifest, true).Load()
	assert.Empty(t, m.Files)
}

func TestRun_PolicySkipRefreshesManifest(t *testing.T) {
	dir := t.TempDir()
	optimalPNG(t, filepath.Join(dir, "icon.png"))
	cfg := testConfig(dir, true)

	first, _ := run(t, cfg, dir)
	fr := fileResult(t, first, "icon.png")
	assert.Equal(t, SkippedByPolicy, fr.State)
	assert.Equal(t, selector.SkipNotSmaller, fr.Outcome.Kind)
	assert.Equal(t, []selector.Strategy{selector.Lossless}, fr.Outcome.Considered)

	second, _ := run(t, cfg, dir)
	assert.Equal(t, SkippedByManifest, fileResult(t, second, "icon.png").State)
}

func TestRun_PolicyChangeInvalidatesManifest(t *testing.T) {
	dir := t.TempDir()
	optimalPNG(t, filepath.Join(dir, "icon.png"))
	cfg := testConfig(dir, true)

	run(t, cfg, dir)

	cfg.MinReductionBytes = 2048
	stats, _ := run(t, cfg, dir)
	assert.Equal(t, SkippedByPolicy, fileResult(t, stats, "icon.png").State, "re-evaluated, not skipped by manifest")
	assert.Equal(t, 0, stats.SkippedByManifest)
}

func TestRun_ModifiedFileIsReevaluated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	optimalPNG(t, path)
	cfg := testConfig(dir, true)
	run(t, cfg, dir)

	noisyPNG(t, path, 9)
	stats, _ := run(t, cfg, dir)
	assert.Equal(t, Replaced, fileResult(t, stats, "a.png").State)
}

type sizedImage struct{ lossless, quantized int }

func (s sizedImage) Paletted() bool { return false }
func (s sizedImage) Animated() bool { return false }
func (s sizedImage) EncodeLossless() ([]byte, error) { return make([]byte, s.lossless), nil }
func (s sizedImage) EncodeQuantized(int) ([]byte, error) { return bytes.Repeat([]byte{'q'}, s.quantized), nil }

func TestRun_EndToEndScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hero.png")
	require.NoError(t, os.WriteFile(path, make([]byte, 500_000), 0o644))
	cfg := testConfig(dir, true)

	dec := WithDecoder(selector.DecoderFunc(func([]byte) (selector.Image, error) {
		return sizedImage{lossless: 480_000, quantized: 300_000}, nil
	}))
	stats, out := run(t, cfg, dir, dec)

	fr := fileResult(t, stats, "hero.png")
	assert.Equal(t, Replaced, fr.State)
	assert.Equal(t, selector.Quantized, fr.Outcome.Strategy)
	assert.Equal(t, int64(300_000), fr.Outcome.ChosenSize)
	assert.Contains(t, out, "replace: hero.png 500000 -> 300000 (200000B, palette-256)")
	assert.Equal(t, int64(500_000), stats.BytesBefore)
	assert.Equal(t, int64(300_000), stats.BytesAfter)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), fi.Size())

	m := manifest.NewStore(cfg.Manifest, true).Load()
	assert.Equal(t, manifest.Entry{
		ModificationTimeNanos: fi.ModTime().UnixNano(),
		Signature:             manifest.ComputeSignature(cfg.Policy()),
		Size:                  300_000,
	}, m.Files["hero.png"])
}

func TestRun_NoFiles(t *testing.T) {
	dir := t.TempDir()
	stats, out := run(t, testConfig(dir, true), dir)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.ExitCode())
	assert.Contains(t, out, "No PNG files found in targets.")
}

func TestRun_CorruptManifestRechecksEverything(t *testing.T) {
	dir := t.TempDir()
	optimalPNG(t, filepath.Join(dir, "icon.png"))
	cfg := testConfig(dir, true)
	require.NoError(t, os.WriteFile(cfg.Manifest, []byte("{{{"), 0o644))

	stats, _ := run(t, cfg, dir)
	assert.Equal(t, SkippedByPolicy, fileResult(t, stats, "icon.png").State)

	m := manifest.NewStore(cfg.Manifest, true).Load()
	assert.Contains(t, m.Files, "icon.png")
}

func TestReporter_ThrottlesManifestSkips(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	for i := 1; i <= 120; i++ {
		r.SkippedByManifest(i, 120, "x.png")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"[50/120] skip(manifest): x.png",
		"[100/120] skip(manifest): x.png",
		"[120/120] skip(manifest): x.png",
	}, lines)
}
