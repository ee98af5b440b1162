package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ewintr.nl/conceptube/model"
	"github.com/google/uuid"
)

type Memory struct {
	mu     sync.RWMutex
	videos map[uuid.UUID]*model.Video
	byYtID map[model.YoutubeVideoID]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		videos: make(map[uuid.UUID]*model.Video),
		byYtID: make(map[model.YoutubeVideoID]uuid.UUID),
	}
}

func (m *Memory) FindByID(_ context.Context, id uuid.UUID) (*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	video, ok := m.videos[id]
	if !ok {
		return nil, ErrNotFound
	}

	return video.Clone(), nil
}

func (m *Memory) FindByYoutubeID(_ context.Context, ytID model.YoutubeVideoID) (*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byYtID[ytID]
	if !ok {
		return nil, ErrNotFound
	}

	return m.videos[id].Clone(), nil
}

func (m *Memory) Insert(_ context.Context, video *model.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byYtID[video.YoutubeID]; ok {
		return ErrDuplicateKey
	}
	if _, ok := m.videos[video.ID]; ok {
		return ErrDuplicateKey
	}
	m.videos[video.ID] = video.Clone()
	m.byYtID[video.YoutubeID] = video.ID

	return nil
}

func (m *Memory) List(_ context.Context) ([]*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sorted(func(*model.Video) bool { return true }, 0), nil
}

func (m *Memory) Search(_ context.Context, query string, limit int) ([]*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(query)
	contains := func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	}
	return m.sorted(func(v *model.Video) bool {
		if contains(v.Title) || contains(v.Channel) || contains(v.Transcript) {
			return true
		}
		for _, c := range v.MappedConcepts {
			if contains(c) {
				return true
			}
		}
		return false
	}, limit), nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	video, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byYtID, video.YoutubeID)
	delete(m.videos, id)

	return nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.videos), nil
}

// sorted returns copies of the matching videos, newest first. A limit of
// zero or less means no limit. Callers hold the read lock.
func (m *Memory) sorted(match func(*model.Video) bool, limit int) []*model.Video {
	videos := []*model.Video{}
	for _, v := range m.videos {
		if match(v) {
			videos = append(videos, v)
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	if limit > 0 && len(videos) > limit {
		videos = videos[:limit]
	}
	for i, v := range videos {
		videos[i] = v.Clone()
	}

	return videos
}
