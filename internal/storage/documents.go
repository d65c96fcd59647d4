package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
)

const jsonContentType = "application/json; charset=utf-8"

// WriteJSON serializes v as indented UTF-8 JSON and overwrites loc with it.
// Marshalling finishes before the upload starts, so a failed encode never
// leaves a half-written document behind.
func WriteJSON(ctx context.Context, s Storage, loc partition.Location, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", loc, err)
	}

	return s.Upload(ctx, loc, buf.Bytes(), jsonContentType)
}

// ReadJSON downloads loc and decodes it into v.
func ReadJSON(ctx context.Context, s Storage, loc partition.Location, v any) error {
	data, err := s.Download(ctx, loc)
	if err != nil {
		return err
	}
	data, err = utf8Document(data)
	if err != nil {
		return fmt.Errorf("read %s: %w", loc, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", loc, err)
	}
	return nil
}

// Partitions lists the ingest dates present for entity in container, newest first.
func Partitions(ctx context.Context, s Storage, container string, entity partition.Entity) ([]partition.Date, error) {
	prefix := fmt.Sprintf("%s/%s/ingest_date=", partition.Domain, entity)
	keys, err := s.List(ctx, container, prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[partition.Date]bool)
	var dates []partition.Date
	for _, key := range keys {
		segment, _, _ := strings.Cut(strings.TrimPrefix(key, prefix), "/")
		date, err := partition.ParseDate(segment)
		if err != nil || seen[date] {
			continue
		}
		seen[date] = true
		dates = append(dates, date)
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].String() > dates[j].String()
	})
	return dates, nil
}
