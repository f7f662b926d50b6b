package document

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/thywilljoshua/exbank/internal/ai"
)

// RenderPage rasterizes one page with pdftoppm and returns it ready for the
// model. Renders are cached per document so reruns only pay for new pages.
func (d *PDF) RenderPage(ctx context.Context, page int) (ai.Image, error) {
	if page <= 0 {
		return ai.Image{}, fmt.Errorf("page must be >= 1, got %d", page)
	}
	dir := d.cacheDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ai.Image{}, fmt.Errorf("render cache: %w", err)
	}
	prefix := filepath.Join(dir, fmt.Sprintf("page-%04d-%ddpi", page, d.opts.DPI))
	out := prefix + ".png"

	if _, err := os.Stat(out); err != nil {
		if _, err := exec.LookPath(d.opts.Pdftoppm); err != nil {
			return ai.Image{}, fmt.Errorf("pdftoppm not found in PATH: %w", err)
		}
		args := []string{
			"-r", strconv.Itoa(d.opts.DPI),
			"-png",
			"-f", strconv.Itoa(page),
			"-l", strconv.Itoa(page),
			"-singlefile",
			d.path, prefix,
		}
		cmd := exec.CommandContext(ctx, d.opts.Pdftoppm, args...)
		if b, err := cmd.CombinedOutput(); err != nil {
			_ = os.Remove(out)
			return ai.Image{}, fmt.Errorf("pdftoppm page %d failed: %w; out=%s", page, err, string(b))
		}
		d.log.Debug("page rendered", "page", page, "file", out)
	}

	im, err := ai.LoadImage(out, d.opts.MaxImagePx)
	if err != nil {
		return ai.Image{}, fmt.Errorf("render page %d: %w", page, err)
	}
	return im, nil
}
