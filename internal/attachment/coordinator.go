package attachment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/paperclip/internal/logging"
)

// Coordinator runs attachment hooks around entity persistence. Callers
// invoke it explicitly after save, before delete and after delete.
type Coordinator struct {
	logger logging.Logger

	mu    sync.Mutex
	depth map[*Set]int
}

func NewCoordinator(logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{logger: logger, depth: make(map[*Set]int)}
}

// enter reports whether this is the outermost Saved call for set.
func (c *Coordinator) enter(set *Set) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.depth[set]++
	return c.depth[set] == 1
}

func (c *Coordinator) leave(set *Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth[set]--; c.depth[set] <= 0 {
		delete(c.depth, set)
	}
}

// Saved processes pending attachment changes once per save. The updated
// flag is cleared before the attachments run, so saves triggered by
// metadata write-back are no-ops; it is restored when any attachment fails.
func (c *Coordinator) Saved(ctx context.Context, entity Attachable) error {
	set := entity.Attachments()
	if set == nil {
		return nil
	}

	if !c.enter(set) {
		return nil
	}
	defer c.leave(set)

	if !set.Updated() {
		return nil
	}
	set.clearUpdated()

	var errs []error
	for _, a := range set.items {
		if err := a.AfterSave(ctx, entity); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		set.MarkUpdated()
		err := errors.Join(errs...)
		c.logger.Error(ctx, "attachment processing failed", "entity", entity.AttachableType(), "id", entity.AttachableID(), "error", err)
		return err
	}

	c.logger.Debug(ctx, "attachments saved", "entity", entity.AttachableType(), "id", entity.AttachableID())
	return nil
}

// Deleting runs BeforeDelete on each attachment; the first error aborts.
func (c *Coordinator) Deleting(ctx context.Context, entity Attachable) error {
	set := entity.Attachments()
	if set == nil {
		return nil
	}

	for _, a := range set.items {
		if err := a.BeforeDelete(ctx, entity); err != nil {
			return fmt.Errorf("before delete: %w", err)
		}
	}
	return nil
}

// Deleted runs AfterDelete on every attachment and returns the joined
// failures. The entity delete itself is not affected.
func (c *Coordinator) Deleted(ctx context.Context, entity Attachable) error {
	set := entity.Attachments()
	if set == nil {
		return nil
	}

	var errs []error
	for _, a := range set.items {
		if err := a.AfterDelete(ctx, entity); err != nil {
			errs = append(errs, err)
		}
	}
	set.clearUpdated()

	if len(errs) > 0 {
		err := errors.Join(errs...)
		c.logger.Warn(ctx, "attachment cleanup incomplete", "entity", entity.AttachableType(), "id", entity.AttachableID(), "error", err)
		return err
	}
	return nil
}
