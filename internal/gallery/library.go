package gallery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	apperrors "photovault/internal/errors"
	"photovault/internal/model"
)

// Library manages categories, photos and settings of the live gallery.
type Library struct {
	database Database
	media    MediaStore
	logger   Logger
	clock    Clock
}

// NewLibrary creates a new Library with the provided dependencies.
func NewLibrary(database Database, media MediaStore, logger Logger, clock Clock) *Library {
	return &Library{
		database: database,
		media:    media,
		logger:   logger,
		clock:    clock,
	}
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// DefaultCategoryColor is used when a category is added without a color.
const DefaultCategoryColor = "#9E9E9E"

// AddCategory creates a category at the end of the list.
func (l *Library) AddCategory(ctx context.Context, name, color string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is empty")
	}
	if color == "" {
		color = DefaultCategoryColor
	}
	if !colorPattern.MatchString(color) {
		return nil, fmt.Errorf("invalid color %q: want #RRGGBB", color)
	}

	existing, err := l.database.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	position := 0
	for _, c := range existing {
		position = max(position, c.Position+1)
	}

	c := &model.Category{Name: name, DisplayName: name, Color: color, Position: position}
	if err := l.database.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	l.logger.Info("category added", "name", c.Name, "id", c.ID)
	return c, nil
}

// ListCategories returns the live categories in display order.
func (l *Library) ListCategories(ctx context.Context) ([]*model.Category, error) {
	return l.database.ListCategories(ctx)
}

// FindCategory resolves a category by name, falling back to its id.
func (l *Library) FindCategory(ctx context.Context, nameOrID string) (*model.Category, error) {
	c, err := l.database.FindCategoryByName(ctx, nameOrID)
	if err != nil {
		return nil, fmt.Errorf("finding category: %w", err)
	}
	if c != nil {
		return c, nil
	}
	c, err = l.database.FindCategoryByID(ctx, nameOrID)
	if err != nil {
		return nil, fmt.Errorf("finding category: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("category %q: %w", nameOrID, apperrors.ErrNotFound)
	}
	return c, nil
}

// RenameCategory changes a category's name and display name.
func (l *Library) RenameCategory(ctx context.Context, nameOrID, newName string) (*model.Category, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("category name is empty")
	}
	c, err := l.FindCategory(ctx, nameOrID)
	if err != nil {
		return nil, err
	}
	old := c.Name
	c.Name = newName
	c.DisplayName = newName
	if err := l.database.UpdateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("renaming category: %w", err)
	}
	l.logger.Info("category renamed", "from", old, "to", newName)
	return c, nil
}

// DeleteCategory soft-deletes a category and its photos. The media files
// stay until the tombstones are purged.
func (l *Library) DeleteCategory(ctx context.Context, nameOrID string) error {
	c, err := l.FindCategory(ctx, nameOrID)
	if err != nil {
		return err
	}
	if err := l.database.DeleteCategory(ctx, c.ID); err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	l.logger.Info("category deleted", "name", c.Name, "id", c.ID)
	return nil
}

// ListPhotos returns live photos, all of them when category is empty.
func (l *Library) ListPhotos(ctx context.Context, category string) ([]*model.Photo, error) {
	categoryID := ""
	if category != "" {
		c, err := l.FindCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		categoryID = c.ID
	}
	return l.database.ListPhotos(ctx, categoryID)
}

// DeletePhoto soft-deletes a photo.
func (l *Library) DeletePhoto(ctx context.Context, id string) error {
	if err := l.database.DeletePhoto(ctx, id); err != nil {
		return fmt.Errorf("deleting photo: %w", err)
	}
	l.logger.Info("photo deleted", "id", id)
	return nil
}

// SetTheme saves the gallery theme.
func (l *Library) SetTheme(ctx context.Context, theme string) error {
	if theme != "light" && theme != "dark" {
		return fmt.Errorf("unknown theme %q", theme)
	}
	return l.database.SaveSettings(ctx, &model.Settings{Theme: theme})
}
