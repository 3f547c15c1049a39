// Package category turns the catalog's flat category list into the nested
// forest that drives navigation menus.
package category

import (
	"sort"
	"strconv"

	"github.com/fjod/go_storefront/internal/domain"
)

// BuildForest transforms a flat, possibly-unordered category list into a
// forest of root nodes with recursively sorted children.
//
// Malformed input degrades instead of failing: duplicate ids keep the last
// record, a record whose parent is absent from the input is dropped, and a
// record inside a parent cycle is promoted to a root. The input slice is
// never mutated.
func BuildForest(records []domain.Category) []*domain.CategoryNode {
	byID := make(map[int64]domain.Category, len(records))
	nodes := make(map[int64]*domain.CategoryNode, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
		nodes[rec.ID] = newNode(rec)
	}

	roots := []*domain.CategoryNode{}
	attached := make(map[int64]bool, len(records))
	for _, rec := range records {
		if attached[rec.ID] {
			continue // duplicate id, already placed
		}
		attached[rec.ID] = true

		// Duplicates: the last record decides placement as well as
		// attributes.
		rec = byID[rec.ID]
		node := nodes[rec.ID]

		switch {
		case rec.ParentID == 0:
			roots = append(roots, node)
		case inCycle(rec.ID, byID):
			// Malformed parent chain: fail safe, treat the node as a root.
			node.ParentID = ""
			roots = append(roots, node)
		default:
			parent, ok := nodes[rec.ParentID]
			if !ok {
				continue // orphan, silently dropped
			}
			parent.Children = append(parent.Children, node)
		}
	}

	sortForest(roots)
	return roots
}

func newNode(rec domain.Category) *domain.CategoryNode {
	node := &domain.CategoryNode{
		ID:        strconv.FormatInt(rec.ID, 10),
		Name:      rec.Name,
		Slug:      rec.Slug,
		SortOrder: rec.SortOrder,
		Count:     rec.Count,
		Children:  []*domain.CategoryNode{},
	}
	if rec.ParentID != 0 {
		node.ParentID = strconv.FormatInt(rec.ParentID, 10)
	}
	return node
}

// inCycle reports whether id's parent chain loops back through id instead
// of terminating at a root or a missing parent.
func inCycle(id int64, byID map[int64]domain.Category) bool {
	seen := map[int64]bool{id: true}
	cur := byID[id].ParentID
	for cur != 0 {
		if seen[cur] {
			return true
		}
		seen[cur] = true
		rec, ok := byID[cur]
		if !ok {
			return false
		}
		cur = rec.ParentID
	}
	return false
}

// sortForest orders siblings by ascending sort order at every level.
// The sort is stable so ties keep their input order.
func sortForest(nodes []*domain.CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].SortOrder < nodes[j].SortOrder
	})
	for _, node := range nodes {
		sortForest(node.Children)
	}
}
