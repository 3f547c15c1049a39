package domain

// Category is a flat category record as returned by the catalog:
// a parent id of 0 marks a root category.
type Category struct {
	ID        int64
	Name      string
	Slug      string
	ParentID  int64
	SortOrder int
	Count     int
}

// CategoryNode is one node of the built navigation forest. Children is
// never nil so consumers can range over it without a presence check.
type CategoryNode struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	ParentID  string          `json:"parent_id,omitempty"`
	SortOrder int             `json:"sort_order"`
	Count     int             `json:"count"`
	Children  []*CategoryNode `json:"children"`
}
