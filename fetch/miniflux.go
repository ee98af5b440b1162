package fetch

import (
	"ewintr.nl/conceptube/config"
	"miniflux.app/client"
)

type FeedEntry struct {
	EntryID int64
	FeedID  int64
	URL     string
	Title   string
}

type FeedReader interface {
	Unread() ([]FeedEntry, error)
	MarkRead(entryID int64) error
}

// Miniflux reads the entries of the YouTube channel feeds subscribed to in a
// Miniflux instance.
type Miniflux struct {
	client *client.Client
}

func NewMiniflux(cfg config.FeedConfig) *Miniflux {
	return &Miniflux{
		client: client.New(cfg.Endpoint, cfg.APIKey),
	}
}

func (m *Miniflux) Unread() ([]FeedEntry, error) {
	result, err := m.client.Entries(&client.Filter{
		Status:    client.EntryStatusUnread,
		Order:     "published_at",
		Direction: "asc",
	})
	if err != nil {
		return nil, err
	}

	entries := make([]FeedEntry, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entries = append(entries, FeedEntry{
			EntryID: entry.ID,
			FeedID:  entry.FeedID,
			URL:     entry.URL,
			Title:   entry.Title,
		})
	}

	return entries, nil
}

func (m *Miniflux) MarkRead(entryID int64) error {
	return m.client.UpdateEntries([]int64{entryID}, client.EntryStatusRead)
}
