package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"vendorsync/internal/db"
)

// SplitPath splits a category path on " / " or " > " separators that appear
// outside parenthesized segments, so names like "Monitors (27 > 32 in)"
// survive intact. Without a valid separator the trimmed input is the single
// segment.
func SplitPath(s string) []string {
	var parts []string
	var buf strings.Builder
	depth := 0

	flush := func() {
		if seg := strings.TrimSpace(buf.String()); seg != "" {
			parts = append(parts, seg)
		}
		buf.Reset()
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '(':
			depth++
		case ch == ')' && depth > 0:
			depth--
		}
		if depth == 0 && ch == ' ' && i+2 < len(s) && s[i+1] == '/' && s[i+2] == ' ' {
			flush()
			i += 2
			continue
		}
		if depth == 0 && ch == '>' && i > 0 && s[i-1] == ' ' && (i+1 == len(s) || s[i+1] == ' ') {
			flush()
			continue
		}
		buf.WriteByte(ch)
	}
	flush()

	if len(parts) == 0 {
		return []string{strings.TrimSpace(s)}
	}
	return parts
}

// CategoryResolver turns free-text category values into taxonomy nodes and
// flat classification entities. One instance serves one run; resolved paths
// are memoized so large feeds touch the store once per distinct path.
type CategoryResolver struct {
	mapping *MappingStrategy
	cache   *gocache.Cache
}

func NewCategoryResolver(mapping *MappingStrategy) *CategoryResolver {
	return &CategoryResolver{
		mapping: mapping,
		cache:   gocache.New(30*time.Minute, time.Hour),
	}
}

// MapLabel applies the configured mapping table to a raw category label;
// unmapped labels pass through unchanged.
func (r *CategoryResolver) MapLabel(raw string) string {
	if r.mapping == nil {
		return raw
	}
	return r.mapping.Apply(raw)
}

// ResolvePath walks the segments of a category path, creating missing nodes
// under (name, parent, channel), and returns the deepest node's id.
func (r *CategoryResolver) ResolvePath(tx *gorm.DB, path string, channelID *uint) (uint, error) {
	path = r.MapLabel(path)
	if strings.TrimSpace(path) == "" {
		return 0, nil
	}

	key := cacheKey(path, channelID)
	if v, ok := r.cache.Get(key); ok {
		return v.(uint), nil
	}

	var parent *uint
	var leaf uint
	for _, name := range SplitPath(path) {
		node, err := getOrCreateNode(tx, name, parent, channelID)
		if err != nil {
			return 0, err
		}
		leaf = node.ID
		parent = &node.ID
	}

	if leaf != 0 {
		r.cache.Set(key, leaf, gocache.DefaultExpiration)
	}
	return leaf, nil
}

// ResolveFlat resolves the catalog classification category: mapped label
// first, then exact name; a miss falls back to the configured default, and
// with no default the category is created.
func (r *CategoryResolver) ResolveFlat(tx *gorm.DB, raw, defaultName string) (uint, error) {
	name := strings.TrimSpace(r.MapLabel(raw))
	if name == "" {
		name = strings.TrimSpace(defaultName)
		if name == "" {
			return 0, nil
		}
	}

	var cat db.Category
	err := tx.Where("name = ?", name).Take(&cat).Error
	if err == nil {
		return cat.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("find category %q: %w", name, err)
	}

	if defaultName != "" && name != defaultName {
		return r.ResolveFlat(tx, defaultName, defaultName)
	}
	cat = db.Category{Name: name}
	if err := tx.Create(&cat).Error; err != nil {
		return 0, fmt.Errorf("create category %q: %w", name, err)
	}
	return cat.ID, nil
}

func getOrCreateNode(tx *gorm.DB, name string, parent, channel *uint) (*db.PublicCategory, error) {
	q := tx.Where("name = ?", name)
	q = whereNullable(q, "parent_id", parent)
	q = whereNullable(q, "channel_id", channel)

	var node db.PublicCategory
	err := q.Order("id").Take(&node).Error
	if err == nil {
		return &node, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find category node %q: %w", name, err)
	}

	node = db.PublicCategory{Name: name, ParentID: parent, ChannelID: channel}
	if err := tx.Create(&node).Error; err != nil {
		return nil, fmt.Errorf("create category node %q: %w", name, err)
	}
	return &node, nil
}

func whereNullable(q *gorm.DB, col string, v *uint) *gorm.DB {
	if v == nil {
		return q.Where(col + " IS NULL")
	}
	return q.Where(col+" = ?", *v)
}

func cacheKey(path string, channelID *uint) string {
	if channelID == nil {
		return path
	}
	return fmt.Sprintf("%s\x00%d", path, *channelID)
}
