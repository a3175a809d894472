package repository

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
)

// Property is a stored statistic column with its position in the category tree.
type Property struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"display_name"`
	GroupID       string   `json:"group_id"`
	GroupName     string   `json:"group_name"`
	SortDirection string   `json:"sort_direction"`
	IsSummary     bool     `json:"is_summary"`
	ParentID      string   `json:"parent_id,omitempty"`
	ChildIDs      []string `json:"child_ids,omitempty"`
	RowOrder      int      `json:"row_order"`
	Visible       bool     `json:"visible"`
	PluginID      string   `json:"plugin_id,omitempty"`
	Depth         int      `json:"depth"`
}

// Category groups properties sharing a group id.
type Category struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`

	minRowOrder int
}

// GetProperties returns categories ordered by their smallest row order. Within a
// category, properties are listed parent first, depth first, siblings by row order.
func (r *Repository) GetProperties(ctx context.Context) ([]Category, error) {
	db, err := r.store.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, display_name, group_id, group_name, sort_direction, is_summary,
		       parent_id, child_ids, row_order, visible, plugin_id
		FROM properties
		ORDER BY row_order, id`)
	if err != nil {
		return nil, fmt.Errorf("querying properties: %w", err)
	}
	defer rows.Close()

	var (
		categories []*Category
		byGroup    = make(map[string]*Category)
		members    = make(map[string][]Property)
	)
	for rows.Next() {
		var (
			p                          Property
			parent, children, pluginID sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.GroupID, &p.GroupName, &p.SortDirection,
			&p.IsSummary, &parent, &children, &p.RowOrder, &p.Visible, &pluginID); err != nil {
			return nil, err
		}
		p.ParentID = parent.String
		p.PluginID = pluginID.String
		if children.String != "" {
			p.ChildIDs = strings.Split(children.String, ":")
		}

		cat, ok := byGroup[p.GroupID]
		if !ok {
			// rows arrive by row order, so the first member carries the minimum
			cat = &Category{ID: p.GroupID, Name: p.GroupName, minRowOrder: p.RowOrder}
			byGroup[p.GroupID] = cat
			categories = append(categories, cat)
		}
		members[p.GroupID] = append(members[p.GroupID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(categories, func(a, b *Category) int {
		return cmp.Compare(a.minRowOrder, b.minRowOrder)
	})

	out := make([]Category, 0, len(categories))
	for _, cat := range categories {
		cat.Properties = orderTree(members[cat.ID])
		out = append(out, *cat)
	}
	return out, nil
}

// orderTree flattens props (sorted by row order, then id) into depth-first order.
// Parents outside the slice are treated as absent. Members of a cycle, possible
// after cross-file upserts, are appended as roots once the forest is exhausted.
func orderTree(props []Property) []Property {
	index := make(map[string]int, len(props))
	for i, p := range props {
		index[p.ID] = i
	}

	children := make(map[string][]int)
	var roots []int
	for i, p := range props {
		if _, ok := index[p.ParentID]; ok && p.ParentID != p.ID {
			children[p.ParentID] = append(children[p.ParentID], i)
			continue
		}
		roots = append(roots, i)
	}

	out := make([]Property, 0, len(props))
	visited := make([]bool, len(props))
	var walk func(i, depth int)
	walk = func(i, depth int) {
		if visited[i] {
			return
		}
		visited[i] = true
		p := props[i]
		p.Depth = depth
		out = append(out, p)
		for _, c := range children[p.ID] {
			walk(c, depth+1)
		}
	}

	for _, i := range roots {
		walk(i, 0)
	}
	for i := range props {
		walk(i, 0)
	}
	return out
}
