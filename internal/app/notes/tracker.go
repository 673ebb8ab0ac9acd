package notes

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Creator выполняет побочный эффект создания follow-up заметки.
type Creator interface {
	CreateNote(ctx context.Context, accession string) error
}

// CreatorFunc — адаптер функции под Creator.
type CreatorFunc func(ctx context.Context, accession string) error

func (f CreatorFunc) CreateNote(ctx context.Context, accession string) error {
	return f(ctx, accession)
}

// Tracker гарантирует не более одного создания заметки на accession.
// Сбрасывается только сменой исследования в поллере.
type Tracker struct {
	logger  *zap.SugaredLogger
	creator Creator

	mu         sync.Mutex
	createdFor string
}

func NewTracker(creator Creator, logger *zap.SugaredLogger) *Tracker {
	return &Tracker{creator: creator, logger: logger}
}

// EnsureNoteForAccession создаёт заметку, если для этого accession она ещё не
// создавалась. Пустой accession — no-op. При ошибке создания факт не
// фиксируется, следующий вызов попробует снова.
func (t *Tracker) EnsureNoteForAccession(ctx context.Context, accession string) error {
	if accession == "" {
		return nil
	}
	t.mu.Lock()
	if t.createdFor == accession {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.creator.CreateNote(ctx, accession); err != nil {
		t.logger.Errorw("Failed to create follow-up note", "accession", accession, "error", err)
		return err
	}

	t.mu.Lock()
	t.createdFor = accession
	t.mu.Unlock()
	t.logger.Infow("Follow-up note created", "accession", accession)
	return nil
}

// HasNoteFor сообщает, создавалась ли заметка для accession.
func (t *Tracker) HasNoteFor(accession string) bool {
	if accession == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.createdFor == accession
}

// Reset забывает факт создания; вызывается при смене исследования.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.createdFor = ""
	t.mu.Unlock()
}
