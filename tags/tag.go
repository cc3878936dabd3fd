package tags

// Tag is an externally owned tag definition.
type Tag struct {
	ID    string
	Name  string
	Color string
}

// Link associates a position key with a tag.
type Link struct {
	PositionKey string
	TagID       string
}
