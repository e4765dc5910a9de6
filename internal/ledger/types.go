package ledger

import (
	"fmt"
	"strings"
)

// Table names match the worksheet titles in the spreadsheet.
const (
	TableImages  = "list_image"
	TableVideos  = "list_video"
	TableOutputs = "list_output"
)

// Image table columns.
const (
	colImageAssetID = iota
	colImageName
	colImageOutputChat
	colImageTopic
	colImagePriorName
	colImageChannel
)

// NormalizeName is the dedup key normalization for display names.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// OptionalID is a provisioning result that may be absent: topic or channel
// creation can fail without aborting registration, and legacy image rows
// predate the channel column. The wire format is still text ("" = unset).
type OptionalID struct {
	Value string
	Valid bool
}

func SomeID(v string) OptionalID {
	if v == "" {
		return OptionalID{}
	}
	return OptionalID{Value: v, Valid: true}
}

func (o OptionalID) StringOrEmpty() string {
	if !o.Valid {
		return ""
	}
	return o.Value
}

// OutputKey identifies one rendered (image, video) combination. It is stored
// as "<imageAssetID>_<videoAssetID>" in the outputs table.
type OutputKey struct {
	ImageID string
	VideoID string
}

func (k OutputKey) String() string {
	return k.ImageID + "_" + k.VideoID
}

// HasImage reports whether the key references the given image asset.
func (k OutputKey) HasImage(imageAssetID string) bool {
	return k.ImageID == imageAssetID
}

// ParseOutputKey splits a stored key. Video asset ids never contain "_"
// (they are Telegram message ids), so the first separator wins.
func ParseOutputKey(s string) (OutputKey, error) {
	i := strings.Index(s, "_")
	if i <= 0 || i == len(s)-1 {
		return OutputKey{}, fmt.Errorf("malformed output key %q", s)
	}
	return OutputKey{ImageID: s[:i], VideoID: s[i+1:]}, nil
}

// ImageRow is one registered face image. Index is the data-row position at
// fetch time; it is only valid until the next mutation of the table.
type ImageRow struct {
	Index        int
	AssetID      string
	DisplayName  string
	OutputChatID string
	TopicID      OptionalID
	PriorName    string
	ChannelID    OptionalID
}

func parseImageRow(idx int, cells []string) ImageRow {
	r := ImageRow{Index: idx}
	get := func(i int) string {
		if i < len(cells) {
			return cells[i]
		}
		return "" // legacy rows predate the channel column
	}
	r.AssetID = get(colImageAssetID)
	r.DisplayName = get(colImageName)
	r.OutputChatID = get(colImageOutputChat)
	r.TopicID = SomeID(get(colImageTopic))
	r.PriorName = get(colImagePriorName)
	if r.PriorName == "" {
		r.PriorName = r.DisplayName
	}
	r.ChannelID = SomeID(get(colImageChannel))
	return r
}

func (r ImageRow) cells() []string {
	return []string{
		r.AssetID,
		r.DisplayName,
		r.OutputChatID,
		r.TopicID.StringOrEmpty(),
		r.PriorName,
		r.ChannelID.StringOrEmpty(),
	}
}

// VideoRow is one registered target video.
type VideoRow struct {
	Index       int
	AssetID     string
	DisplayName string
}

func parseVideoRow(idx int, cells []string) VideoRow {
	r := VideoRow{Index: idx}
	if len(cells) > 0 {
		r.AssetID = cells[0]
	}
	if len(cells) > 1 {
		r.DisplayName = cells[1]
	}
	return r
}

// OutputRow records one confirmed-delivered render.
type OutputRow struct {
	Index int
	Key   OutputKey
	Label string
}
