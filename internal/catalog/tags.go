package catalog

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/errors"
	"github.com/tometrove/tometrove/internal/store"
)

// Tags is the cached tag table.
type Tags struct {
	store  store.Store
	logger *slog.Logger
	cache  *Cache[int64, domain.Tag]
}

// NewTags builds the tag table on top of s.
func NewTags(s store.Store, logger *slog.Logger) *Tags {
	t := &Tags{store: s, logger: logger}
	t.cache = NewCache(t.loadAll,
		func(tag domain.Tag) int64 { return tag.ID },
		func(tag domain.Tag) domain.Tag { return tag },
	)
	return t
}

func (t *Tags) loadAll(ctx context.Context) ([]domain.Tag, error) {
	records, err := t.store.ListTags(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to load tags")
	}
	tags := make([]domain.Tag, 0, len(records))
	for _, rec := range records {
		tags = append(tags, domain.Tag{ID: rec.ID, Name: rec.Name, Icon: rec.Icon})
	}
	return tags, nil
}

// All returns every tag ordered by id.
func (t *Tags) All(ctx context.Context) ([]domain.Tag, error) {
	return t.cache.All(ctx)
}

// Get returns the tag with the given id.
func (t *Tags) Get(ctx context.Context, id int64) (domain.Tag, error) {
	tag, ok, err := t.cache.Get(ctx, id)
	if err != nil {
		return domain.Tag{}, err
	}
	if !ok {
		return domain.Tag{}, errors.NotFoundf("tag %d not found", id)
	}
	return tag, nil
}

// ByName returns the tag with the exact name.
func (t *Tags) ByName(ctx context.Context, name string) (domain.Tag, error) {
	all, err := t.All(ctx)
	if err != nil {
		return domain.Tag{}, err
	}
	for _, tag := range all {
		if tag.Name == name {
			return tag, nil
		}
	}
	return domain.Tag{}, errors.NotFoundf("tag %q not found", name)
}

// Names returns every tag name sorted, blanks excluded.
func (t *Tags) Names(ctx context.Context) ([]string, error) {
	all, err := t.All(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for _, tag := range all {
		if strings.TrimSpace(tag.Name) != "" {
			names = append(names, tag.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Add creates a tag and returns its id.
func (t *Tags) Add(ctx context.Context, name, icon string) (int64, error) {
	defer t.cache.Invalidate()

	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.Validation("tag name is required")
	}
	rec := &store.TagRecord{Name: name, Icon: icon}
	if err := t.store.CreateTag(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return 0, errors.AlreadyExistsf("tag %q already exists", name)
		}
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to add tag")
	}
	t.logger.Info("tag added", "id", rec.ID, "name", name)
	return rec.ID, nil
}

// Update applies patch to a tag. Book tag lists are not rewritten on rename.
func (t *Tags) Update(ctx context.Context, id int64, patch domain.TagPatch) (domain.Tag, error) {
	defer t.cache.Invalidate()

	rec, err := t.store.GetTag(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Tag{}, errors.NotFoundf("tag %d not found", id)
		}
		return domain.Tag{}, errors.Wrap(err, errors.CodeInternal, "failed to load tag")
	}

	if f := patch.Name; f.Set {
		name := strings.TrimSpace(f.Value)
		if f.Null || name == "" {
			return domain.Tag{}, errors.Validation("tag name is required")
		}
		rec.Name = name
	}
	if f := patch.Icon; f.Set {
		rec.Icon = f.Value
		if f.Null {
			rec.Icon = ""
		}
	}

	if err := t.store.UpdateTag(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Tag{}, errors.AlreadyExistsf("tag %q already exists", rec.Name)
		}
		return domain.Tag{}, errors.Wrap(err, errors.CodeInternal, "failed to update tag")
	}
	return domain.Tag{ID: rec.ID, Name: rec.Name, Icon: rec.Icon}, nil
}

// Upsert creates the named tag or updates its icon. created reports which.
func (t *Tags) Upsert(ctx context.Context, name, icon string) (tag domain.Tag, created bool, err error) {
	existing, err := t.ByName(ctx, strings.TrimSpace(name))
	switch {
	case err == nil:
		tag, err = t.Update(ctx, existing.ID, domain.TagPatch{Icon: domain.Set(icon)})
		return tag, false, err
	case errors.Is(err, errors.ErrNotFound):
		id, err := t.Add(ctx, name, icon)
		if err != nil {
			return domain.Tag{}, false, err
		}
		return domain.Tag{ID: id, Name: strings.TrimSpace(name), Icon: icon}, true, nil
	default:
		return domain.Tag{}, false, err
	}
}

// Remove deletes a tag. Books keep the name in their tag lists.
func (t *Tags) Remove(ctx context.Context, id int64) error {
	defer t.cache.Invalidate()

	if err := t.store.DeleteTag(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("tag %d not found", id)
		}
		return errors.Wrap(err, errors.CodeInternal, "failed to remove tag")
	}
	t.logger.Info("tag removed", "id", id)
	return nil
}
