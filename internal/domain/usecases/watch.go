package usecases

import (
	"context"
	"log"

	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

// Watch keeps the store in sync with dir until ctx ends or the watcher closes.
// New files are added unless their course already exists, modified files
// replace their course, and removed files drop it.
func (uc *IngestUseCase) Watch(ctx context.Context, watcher ports.FileWatcher, dir string) error {
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}
	log.Printf("[INFO] Watching %s for course changes", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := uc.handleEvent(ctx, ev); err != nil {
				log.Printf("[WARN] %s: %v", ev.Path, err)
			}
		}
	}
}

func (uc *IngestUseCase) handleEvent(ctx context.Context, ev ports.FileEvent) error {
	switch ev.Operation {
	case ports.FileCreated:
		pc, err := uc.prepare(ctx, ev.Path)
		if err != nil {
			return err
		}
		course, err := uc.retriever.Course(ctx, pc.course.Title)
		if err != nil {
			return err
		}
		if course != nil {
			log.Printf("[INFO] Course already exists: %s - skipping", pc.course.Title)
			return nil
		}
		return uc.store(ctx, ev.Path, pc)
	case ports.FileModified:
		_, _, err := uc.ReplaceCourseDocument(ctx, ev.Path)
		return err
	case ports.FileDeleted:
		return uc.RemoveCourseDocument(ctx, ev.Path)
	}
	return nil
}
