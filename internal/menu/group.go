package menu

import "github.com/gofrs/uuid"

const OthersCategory = "others"

// GroupByCategory groups items in category order. Items without a known
// category land in a trailing "others" group; empty groups are dropped.
func GroupByCategory(items []Item, categories []Category) []Group {
	byCategory := make(map[uuid.UUID][]Item, len(categories))
	known := make(map[uuid.UUID]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}

	var others []Item
	for _, item := range items {
		if item.CategoryID == nil || !known[*item.CategoryID] {
			others = append(others, item)
			continue
		}
		byCategory[*item.CategoryID] = append(byCategory[*item.CategoryID], item)
	}

	groups := make([]Group, 0, len(categories)+1)
	for _, c := range categories {
		if len(byCategory[c.ID]) == 0 {
			continue
		}
		groups = append(groups, Group{Category: c.Name, Items: byCategory[c.ID]})
	}
	if len(others) > 0 {
		groups = append(groups, Group{Category: OthersCategory, Items: others})
	}

	return groups
}

// Index keys items by id.
func Index(items []Item) map[uuid.UUID]Item {
	idx := make(map[uuid.UUID]Item, len(items))
	for _, item := range items {
		idx[item.ID] = item
	}
	return idx
}
