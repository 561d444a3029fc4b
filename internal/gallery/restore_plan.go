package gallery

import (
	"context"
	"fmt"
	"path"
	"strings"

	"photovault/internal/model"
)

// PlanCounts tallies what a restore would do with one kind of item.
type PlanCounts struct {
	Create  int
	Skip    int
	Replace int
	Rename  int
}

// RestorePlan is what a restore would do, computed without changing
// anything.
type RestorePlan struct {
	Strategy      RestoreStrategy
	ClearsLibrary bool
	Categories    PlanCounts
	Photos        PlanCounts
	// Excluded counts photos that would be left out, for example because
	// their media entry is missing.
	Excluded  int
	Deletions int
	// Renames lists "old -> new" for every renamed item.
	Renames []string
}

// plan simulates the restore against the current library.
func (r *RestoreOrchestrator) plan(ctx context.Context, m *model.Manifest, missing map[string]bool, opts RestoreOptions) (*RestorePlan, error) {
	p := &RestorePlan{Strategy: opts.Strategy, ClearsLibrary: opts.Strategy == StrategyReplace}

	cats, err := r.database.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	photos, err := r.database.ListPhotos(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}

	names := make(map[string]bool)
	categoryIDs := make(map[string]bool)
	for _, c := range cats {
		if p.ClearsLibrary && !c.IsDefault {
			continue
		}
		names[strings.ToLower(c.Name)] = true
		categoryIDs[c.ID] = true
	}
	paths := make(map[string]bool)
	photoIDs := make(map[string]bool)
	if !p.ClearsLibrary {
		for _, ph := range photos {
			paths[ph.Path] = true
			photoIDs[ph.ID] = true
		}
	}

	for _, c := range m.Categories {
		key := strings.ToLower(c.Name)
		switch {
		case !names[key] && !categoryIDs[c.ID]:
			p.Categories.Create++
		case p.ClearsLibrary && categoryIDs[c.ID]:
			p.Categories.Replace++
		default:
			switch opts.OnDuplicate {
			case ResolveReplace:
				p.Categories.Replace++
			case ResolveRename:
				name := freeName(names, c.Name)
				p.Categories.Rename++
				p.Renames = append(p.Renames, c.Name+" -> "+name)
				key = strings.ToLower(name)
			default:
				p.Categories.Skip++
			}
		}
		names[key] = true
		categoryIDs[c.ID] = true
	}

	for _, ph := range m.Photos {
		if missing[ph.ID] {
			p.Excluded++
			continue
		}
		if !paths[ph.Path] && !photoIDs[ph.ID] {
			p.Photos.Create++
			paths[ph.Path] = true
			photoIDs[ph.ID] = true
			continue
		}
		switch opts.OnDuplicate {
		case ResolveReplace:
			p.Photos.Replace++
		case ResolveRename:
			renamed := freePath(paths, ph.Path)
			p.Photos.Rename++
			p.Renames = append(p.Renames, ph.Path+" -> "+renamed)
			paths[renamed] = true
		default:
			p.Photos.Skip++
		}
	}

	if !p.ClearsLibrary {
		live := make(map[string]bool, len(cats)+len(photos))
		for _, c := range cats {
			live[c.ID] = true
		}
		for _, ph := range photos {
			live[ph.ID] = true
		}
		for _, d := range m.DeletedItems {
			if live[d.ItemID] {
				p.Deletions++
			}
		}
	}
	return p, nil
}

func freeName(taken map[string]bool, name string) string {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

func freePath(taken map[string]bool, rel string) string {
	dir, file := path.Split(rel)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s%s_%d%s", dir, stem, n, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}
