package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/porygon/internal/history"
	"github.com/tanq16/porygon/internal/locate"
	"github.com/tanq16/porygon/internal/thumbnail"
)

// Rows are display positions: row 0 is the most recent record.

// History returns the records most recent first.
func (c *Controller) History() ([]history.Record, error) {
	var out []history.Record
	err := c.do(func() {
		recs := c.store.Records()
		out = make([]history.Record, len(recs))
		for i, r := range recs {
			out[len(recs)-1-i] = r
		}
	})
	return out, err
}

// storageIndex translates a row into the store's forward index.
func (c *Controller) storageIndex(row int) (int, error) {
	n := c.store.Len()
	if row < 0 || row >= n {
		return 0, fmt.Errorf("%w: %d of %d", ErrNoRecord, row, n)
	}
	return n - 1 - row, nil
}

func (c *Controller) lookup(row int) (int, history.Record, error) {
	var index int
	var rec history.Record
	var lookupErr error
	if err := c.do(func() {
		index, lookupErr = c.storageIndex(row)
		if lookupErr == nil {
			rec, lookupErr = c.store.At(index)
		}
	}); err != nil {
		return 0, history.Record{}, err
	}
	return index, rec, lookupErr
}

func (c *Controller) Record(row int) (history.Record, error) {
	_, rec, err := c.lookup(row)
	return rec, err
}

// BackfillThumbnail sets the thumbnail of row and saves the history.
func (c *Controller) BackfillThumbnail(row int, path string) error {
	var setErr error
	if err := c.do(func() {
		index, err := c.storageIndex(row)
		if err != nil {
			setErr = err
			return
		}
		setErr = c.store.SetThumbnail(index, path)
	}); err != nil {
		return err
	}
	return setErr
}

// FetchHistoryThumbnail returns the thumbnail of row, fetching it into the
// temp dir and back-filling the record when it has none. The network calls
// run on the caller's goroutine.
func (c *Controller) FetchHistoryThumbnail(ctx context.Context, row int) (string, error) {
	index, rec, err := c.lookup(row)
	if err != nil {
		return "", err
	}
	if thumbnail.Exists(rec.Thumbnail) {
		return rec.Thumbnail, nil
	}
	dest := thumbnail.PathForRecord(c.tempDir, index)
	if err := c.worker.FetchThumbnail(ctx, rec.URL, dest); err != nil {
		log.Warn().Str("op", "orchestrator/history-thumbnail").Err(err).Msgf("no thumbnail for %q", rec.Title)
		return "", err
	}
	var setErr error
	if err := c.do(func() { setErr = c.store.SetThumbnail(index, dest) }); err != nil {
		return "", err
	}
	return dest, setErr
}

// ResolveFile finds the downloaded file of row on disk.
func (c *Controller) ResolveFile(row int) (history.Record, string, error) {
	_, rec, err := c.lookup(row)
	if err != nil {
		return history.Record{}, "", err
	}
	path, err := locate.Resolve(rec.Path, rec.Title, rec.Format)
	return rec, path, err
}
