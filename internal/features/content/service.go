package content

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/common"
)

type store interface {
	Insert(ctx context.Context, f *File) error
	Get(ctx context.Context, id string) (File, error)
	IncrementUsage(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
	Top(ctx context.Context, limit int) ([]File, error)
}

// Service — хранилище файлов.
type Service struct {
	repo  store
	newID func() string
}

// NewService создаёт сервис.
func NewService(repo store) *Service {
	return &Service{repo: repo, newID: NewID}
}

// NewID — случайный идентификатор из [0-9a-z] длиной IDLength.
func NewID() string {
	var b strings.Builder
	b.Grow(IDLength)
	for i := 0; i < IDLength; i++ {
		b.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
	}
	return b.String()
}

// ValidID — похоже ли на идентификатор файла.
func ValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !strings.ContainsRune(idAlphabet, rune(id[i])) {
			return false
		}
	}
	return true
}

// Save сохраняет вложение. caption nil — использовать подпись из настроек.
func (s *Service) Save(ctx context.Context, a Attachment, caption *string, createdBy int64) (File, error) {
	if !a.Kind.Valid() || a.FileID == "" {
		return File{}, common.ErrUnsupportedMedia
	}

	f := File{FileID: a.FileID, Kind: a.Kind, Caption: caption, CreatedBy: createdBy}
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		f.ID = s.newID()
		err := s.repo.Insert(ctx, &f)
		if err == nil {
			log.WithFields(log.Fields{
				"file":     f.ID,
				"kind":     f.Kind,
				"operator": createdBy,
			}).Info("Файл сохранён")
			return f, nil
		}
		if !errors.Is(err, ErrDuplicateID) {
			return File{}, err
		}
		log.WithField("attempt", attempt).Warn("Коллизия идентификатора файла")
	}
	return File{}, fmt.Errorf("не удалось подобрать свободный идентификатор за %d попыток", maxIDAttempts)
}

// Get — файл по идентификатору.
func (s *Service) Get(ctx context.Context, id string) (File, error) {
	if !ValidID(id) {
		return File{}, common.ErrContentNotFound
	}
	return s.repo.Get(ctx, id)
}

// MarkDelivered учитывает выдачу файла.
func (s *Service) MarkDelivered(ctx context.Context, id string) {
	if err := s.repo.IncrementUsage(ctx, id); err != nil {
		log.WithError(err).WithField("file", id).Warn("Не удалось увеличить счётчик выдач")
	}
}

// Delete удаляет файл.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.repo.Delete(ctx, id)
}

// Stats — количество файлов и самые популярные.
func (s *Service) Stats(ctx context.Context, top int) (int64, []File, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, nil, err
	}
	files, err := s.repo.Top(ctx, top)
	if err != nil {
		return n, nil, err
	}
	return n, files, nil
}
