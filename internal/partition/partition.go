// Package partition maps (domain, entity, ingest date) to object-store
// addresses. Every stage locates its input and output through Address, so the
// layout <domain>/<entity>/ingest_date=<YYYY-MM-DD>/<file>.json stays identical
// across stages and implementations.
package partition

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day used as the partition key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current partition for the given clock location.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return DateOf(time.Now().In(loc))
}

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid ingest date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// MarshalText renders the date as YYYY-MM-DD so documents carry a plain string.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Layer is the medallion refinement level, which doubles as the container name.
type Layer string

const (
	Bronze Layer = "bronze"
	Silver Layer = "silver"
	Gold   Layer = "gold"
)

// Entity identifies the record type within a domain.
type Entity string

const (
	Videos   Entity = "videos"
	Comments Entity = "comments"
	Final    Entity = "final"
)

// Domain is the top-level path segment; every document of this pipeline lives under youtube/.
const Domain = "youtube"

// Location is the address of one document in the object store.
type Location struct {
	Container string
	Path      string
}

func (l Location) String() string {
	return l.Container + "/" + l.Path
}

// Containers maps layers to the concrete container (bucket) names in use.
type Containers struct {
	Bronze string
	Silver string
	Gold   string
}

// DefaultContainers names each container after its layer.
func DefaultContainers() Containers {
	return Containers{Bronze: string(Bronze), Silver: string(Silver), Gold: string(Gold)}
}

func (c Containers) name(layer Layer) string {
	switch layer {
	case Bronze:
		if c.Bronze != "" {
			return c.Bronze
		}
	case Silver:
		if c.Silver != "" {
			return c.Silver
		}
	case Gold:
		if c.Gold != "" {
			return c.Gold
		}
	}
	return string(layer)
}

// stageFiles names the document each layer writes for an entity.
var stageFiles = map[Layer]map[Entity]string{
	Bronze: {Videos: "videos_raw", Comments: "comments_raw"},
	Silver: {Videos: "videos_clean", Comments: "comments_clean"},
	Gold:   {Videos: "videos_with_sentiment", Comments: "comments_with_sentiment", Final: "kpis"},
}

// Path returns <domain>/<entity>/ingest_date=<date>/<file>.json.
func Path(entity Entity, date Date, file string) string {
	return fmt.Sprintf("%s/%s/ingest_date=%s/%s.json", Domain, entity, date, file)
}

// Address resolves where layer writes its document for entity on date.
// It never fails; the document may or may not exist yet.
func (c Containers) Address(layer Layer, entity Entity, date Date) Location {
	file, ok := stageFiles[layer][entity]
	if !ok {
		file = string(entity)
	}
	return Location{
		Container: c.name(layer),
		Path:      Path(entity, date, file),
	}
}
