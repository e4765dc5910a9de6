package ledger

import (
	"context"
	"fmt"
)

// Client gives typed access to the three ledger tables. It holds no cached
// state: every read hits the store so callers always decide against a fresh
// snapshot.
type Client struct {
	store Store
}

func NewClient(store Store) *Client {
	return &Client{store: store}
}

func (c *Client) Images(ctx context.Context) ([]ImageRow, error) {
	raw, err := c.store.FetchTable(ctx, TableImages)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", TableImages, err)
	}
	rows := make([]ImageRow, 0, len(raw))
	for i, cells := range raw {
		rows = append(rows, parseImageRow(i, cells))
	}
	return rows, nil
}

func (c *Client) Videos(ctx context.Context) ([]VideoRow, error) {
	raw, err := c.store.FetchTable(ctx, TableVideos)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", TableVideos, err)
	}
	rows := make([]VideoRow, 0, len(raw))
	for i, cells := range raw {
		rows = append(rows, parseVideoRow(i, cells))
	}
	return rows, nil
}

func (c *Client) Outputs(ctx context.Context) ([]OutputRow, error) {
	raw, err := c.store.FetchTable(ctx, TableOutputs)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", TableOutputs, err)
	}
	rows := make([]OutputRow, 0, len(raw))
	for i, cells := range raw {
		r := OutputRow{Index: i}
		if len(cells) > 0 {
			if k, err := ParseOutputKey(cells[0]); err == nil {
				r.Key = k
			}
		}
		if len(cells) > 1 {
			r.Label = cells[1]
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// FindImageByAssetID fetches fresh and scans. Asset ids are compared as
// strings because that is how the store keeps them.
func (c *Client) FindImageByAssetID(ctx context.Context, assetID string) (ImageRow, bool, error) {
	rows, err := c.Images(ctx)
	if err != nil {
		return ImageRow{}, false, err
	}
	for _, r := range rows {
		if r.AssetID == assetID {
			return r, true, nil
		}
	}
	return ImageRow{}, false, nil
}

func (c *Client) FindImageByName(ctx context.Context, name string) (ImageRow, bool, error) {
	rows, err := c.Images(ctx)
	if err != nil {
		return ImageRow{}, false, err
	}
	name = NormalizeName(name)
	for _, r := range rows {
		if NormalizeName(r.DisplayName) == name {
			return r, true, nil
		}
	}
	return ImageRow{}, false, nil
}

func (c *Client) FindVideoByAssetID(ctx context.Context, assetID string) (VideoRow, bool, error) {
	rows, err := c.Videos(ctx)
	if err != nil {
		return VideoRow{}, false, err
	}
	for _, r := range rows {
		if r.AssetID == assetID {
			return r, true, nil
		}
	}
	return VideoRow{}, false, nil
}

func (c *Client) FindVideoByName(ctx context.Context, name string) (VideoRow, bool, error) {
	rows, err := c.Videos(ctx)
	if err != nil {
		return VideoRow{}, false, err
	}
	name = NormalizeName(name)
	for _, r := range rows {
		if NormalizeName(r.DisplayName) == name {
			return r, true, nil
		}
	}
	return VideoRow{}, false, nil
}

func (c *Client) AppendImage(ctx context.Context, r ImageRow) error {
	return c.store.AppendRow(ctx, TableImages, r.cells())
}

func (c *Client) AppendVideo(ctx context.Context, r VideoRow) error {
	return c.store.AppendRow(ctx, TableVideos, []string{r.AssetID, r.DisplayName})
}

func (c *Client) AppendOutput(ctx context.Context, key OutputKey, label string) error {
	return c.store.AppendRow(ctx, TableOutputs, []string{key.String(), label})
}

// ReassignImageAssetID rewrites the asset id of an existing image row. Used
// when a new submission collides with an already-registered name: the row is
// reused rather than duplicated.
func (c *Client) ReassignImageAssetID(ctx context.Context, rowIndex int, assetID string) error {
	return c.store.UpdateCell(ctx, TableImages, rowIndex, colImageAssetID, assetID)
}

// RenameImage updates both the display name and the prior-name column so the
// next edit diffs against the current name.
func (c *Client) RenameImage(ctx context.Context, rowIndex int, name string) error {
	if err := c.store.UpdateCell(ctx, TableImages, rowIndex, colImageName, name); err != nil {
		return err
	}
	return c.store.UpdateCell(ctx, TableImages, rowIndex, colImagePriorName, name)
}

func (c *Client) DeleteImageRow(ctx context.Context, rowIndex int) error {
	return c.store.DeleteRow(ctx, TableImages, rowIndex)
}

func (c *Client) DeleteVideoRow(ctx context.Context, rowIndex int) error {
	return c.store.DeleteRow(ctx, TableVideos, rowIndex)
}

func (c *Client) DeleteOutputRow(ctx context.Context, rowIndex int) error {
	return c.store.DeleteRow(ctx, TableOutputs, rowIndex)
}
