package cache

import "sync"

// Kind names an entity family that tags can reference. Kinds form a closed
// set: tags carrying an unregistered kind are rejected at call time, so a
// typo cannot silently break invalidation.
type Kind string

// Kinds for the content families the site serves.
const (
	KindRegion     Kind = "region"
	KindAttraction Kind = "attraction"
	KindActivity   Kind = "activity"
	KindEvent      Kind = "event"
	KindArticle    Kind = "article"
	KindMedia      Kind = "media"
	KindViewStats  Kind = "view_stats"
)

// Wildcard tag IDs understood by collection-level queries.
const (
	IDList    = "LIST"
	IDGallery = "GALLERY"
)

var (
	kindMu          sync.RWMutex
	registeredKinds = map[Kind]struct{}{
		KindRegion:     {},
		KindAttraction: {},
		KindActivity:   {},
		KindEvent:      {},
		KindArticle:    {},
		KindMedia:      {},
		KindViewStats:  {},
	}
)

// RegisterKind adds an application-specific kind to the closed set and
// returns it. Registering an existing kind is a no-op.
func RegisterKind(name string) Kind {
	k := Kind(name)
	kindMu.Lock()
	registeredKinds[k] = struct{}{}
	kindMu.Unlock()
	return k
}

// Registered reports whether the kind is part of the closed set.
func (k Kind) Registered() bool {
	kindMu.RLock()
	_, ok := registeredKinds[k]
	kindMu.RUnlock()
	return ok
}

// Tag labels a cache entry for bulk invalidation. A query declares the tags
// it provides; a mutation declares the tags it invalidates.
type Tag struct {
	Kind Kind
	ID   string
}

// String returns the canonical index form of the tag.
func (t Tag) String() string {
	return string(t.Kind) + ":" + t.ID
}

// Validate checks that the tag references a registered kind and a non-empty ID.
func (t Tag) Validate() error {
	if !t.Kind.Registered() {
		return &ConfigError{Field: "Tag.Kind", Message: "unregistered kind " + string(t.Kind)}
	}
	if t.ID == "" {
		return &ConfigError{Field: "Tag.ID", Message: "must not be empty"}
	}
	return nil
}

// ValidateTags validates every tag in the slice.
func ValidateTags(tags []Tag) error {
	for _, t := range tags {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DedupeTags returns the tags with duplicates removed, preserving first
// occurrence order.
func DedupeTags(tags []Tag) []Tag {
	if len(tags) < 2 {
		return tags
	}
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
