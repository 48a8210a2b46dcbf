package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/photoverify"
)

// imageExts are the extensions picked up when batch is given a directory.
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".tif": true, ".tiff": true,
}

// batchItem is one line of batch output.
type batchItem struct {
	Path   string                   `json:"path" yaml:"path"`
	Result *photoverify.ScoreResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string                   `json:"error,omitempty" yaml:"error,omitempty"`
}

type batchOptions struct {
	historyPath string
	workers     int
	rolling     bool
	window      int
}

func (a *app) batchCommand() *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch <dir|list>",
		Short: "Score every image in a directory or list file",
		Long: `Batch scores many images with one loaded model.

The argument is either a directory (images are taken in name order) or a
text file with one image path per line. Blank lines and lines starting
with # are ignored.

With --rolling the images are scored in order and each scored hash is
pushed into a most-recent-first history window, so later images are
checked against earlier ones. Rolling mode is sequential.

Example:
  photoverify batch ./uploads --workers 8
  photoverify batch uploads.txt --history recent.json --rolling`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			paths, err := collectImages(args[0])
			if err != nil {
				return err
			}
			history, err := loadHistory(opts.historyPath)
			if err != nil {
				return err
			}
			sess, err := a.open()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, sess.close()) }()

			var items []batchItem
			if opts.rolling {
				items = scoreRolling(cmd.Context(), sess.verifier, paths, newRollingHistory(opts.window, history))
			} else {
				items, err = scoreParallel(cmd.Context(), sess.verifier, paths, history, opts.workers)
				if err != nil {
					return err
				}
			}

			failed := 0
			for _, it := range items {
				if it.Error != "" {
					failed++
				}
			}
			a.log.Info("photoverify: batch complete", "total", len(items), "failed", failed,
				"backend", sess.verifier.Backend())
			return a.render(cmd.OutOrStdout(), items)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.historyPath, "history", "", "JSON or YAML array of {id, phash}, most recent first")
	f.IntVar(&opts.workers, "workers", runtime.NumCPU(), "number of concurrent workers")
	f.BoolVar(&opts.rolling, "rolling", false, "feed each scored hash back into the history window")
	f.IntVar(&opts.window, "window", defaultWindow, "rolling history size")
	return cmd
}

// scoreParallel scores paths with at most workers concurrent calls. Results
// keep the input order. Per-image failures are reported in the item.
func scoreParallel(ctx context.Context, v *photoverify.Verifier, paths []string, history []photoverify.HistoryEntry, workers int) ([]batchItem, error) {
	if workers <= 0 {
		workers = 1
	}
	items := make([]batchItem, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			items[i] = scoreOne(v, p, history)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// scoreRolling scores paths in order against a window that grows with every
// scored image.
func scoreRolling(ctx context.Context, v *photoverify.Verifier, paths []string, window *rollingHistory) []batchItem {
	items := make([]batchItem, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			items = append(items, batchItem{Path: p, Error: err.Error()})
			continue
		}
		it := scoreOne(v, p, window.Entries())
		if it.Result != nil {
			window.Push(photoverify.HistoryEntry{ID: p, PHash: it.Result.PHash})
		}
		items = append(items, it)
	}
	return items
}

func scoreOne(v *photoverify.Verifier, path string, history []photoverify.HistoryEntry) batchItem {
	res, err := v.Score(path, history)
	if err != nil {
		return batchItem{Path: path, Error: err.Error()}
	}
	return batchItem{Path: path, Result: res}
}

// collectImages expands a directory or a list file into image paths.
func collectImages(arg string) ([]string, error) {
	fi, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("batch input: %w", err)
	}
	if fi.IsDir() {
		return imagesInDir(arg)
	}
	return readList(arg)
}

func imagesInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list: %w", err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	return paths, nil
}
