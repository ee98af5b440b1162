package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ewintr.nl/conceptube/model"
	"github.com/google/uuid"
)

// dialect holds what differs between the SQL backends. Queries are written
// with $n placeholders and rewritten for drivers that want plain '?'.
type dialect struct {
	name           string
	migrationTable string
	migrations     []string
	positional     bool
	lower          string
	isDuplicate    func(error) bool
}

const videoColumns = `id, youtube_id, title, channel, thumbnail, transcript,
concept_title, concept_summary, mapped_concepts, timestamped_concepts,
related_videos, concept_labels, created_at`

type SQLVideoRepository struct {
	db      *sql.DB
	dialect dialect
}

func newSQLVideoRepository(db *sql.DB, d dialect) (*SQLVideoRepository, error) {
	r := &SQLVideoRepository{db: db, dialect: d}
	if err := r.migrate(d.migrations); err != nil {
		return &SQLVideoRepository{}, fmt.Errorf("migrating %s: %w", d.name, err)
	}

	return r, nil
}

func (r *SQLVideoRepository) Close() error {
	return r.db.Close()
}

func (r *SQLVideoRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLVideoRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	return r.findOne(ctx, `SELECT `+videoColumns+` FROM video WHERE id = $1`, id.String())
}

func (r *SQLVideoRepository) FindByYoutubeID(ctx context.Context, ytID model.YoutubeVideoID) (*model.Video, error) {
	return r.findOne(ctx, `SELECT `+videoColumns+` FROM video WHERE youtube_id = $1`, string(ytID))
}

func (r *SQLVideoRepository) Insert(ctx context.Context, video *model.Video) error {
	mapped, err := encodeJSON(video.MappedConcepts, []string{})
	if err != nil {
		return err
	}
	timestamped, err := encodeJSON(video.TimestampedConcepts, []model.TimestampedConcept{})
	if err != nil {
		return err
	}
	related, err := encodeJSON(video.RelatedVideos, []model.RelatedVideo{})
	if err != nil {
		return err
	}

	query := `INSERT INTO video (` + videoColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.exec(ctx, query,
		video.ID.String(),
		string(video.YoutubeID),
		video.Title,
		video.Channel,
		video.Thumbnail,
		video.Transcript,
		video.ConceptTitle,
		video.ConceptSummary,
		mapped,
		timestamped,
		related,
		strings.Join(video.MappedConcepts, "\n"),
		video.CreatedAt.UnixMilli(),
	); err != nil {
		if r.dialect.isDuplicate(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting video %s: %w", video.YoutubeID, err)
	}

	return nil
}

func (r *SQLVideoRepository) List(ctx context.Context) ([]*model.Video, error) {
	return r.findMany(ctx, `SELECT `+videoColumns+` FROM video ORDER BY created_at DESC`)
}

// Search matches query as a literal, case-insensitive substring of the
// title, channel, transcript or one of the concept labels.
func (r *SQLVideoRepository) Search(ctx context.Context, query string, limit int) ([]*model.Video, error) {
	if limit <= 0 {
		limit = MaxSearchResults
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	lower := r.dialect.lower

	return r.findMany(ctx, `SELECT `+videoColumns+` FROM video
WHERE `+lower+`(title) LIKE $1 ESCAPE '\'
OR `+lower+`(channel) LIKE $1 ESCAPE '\'
OR `+lower+`(transcript) LIKE $1 ESCAPE '\'
OR `+lower+`(concept_labels) LIKE $1 ESCAPE '\'
ORDER BY created_at DESC
LIMIT $2`, pattern, limit)
}

func (r *SQLVideoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.exec(ctx, `DELETE FROM video WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("deleting video %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *SQLVideoRepository) Count(ctx context.Context) (int, error) {
	var n int
	query, args := r.rebind(`SELECT COUNT(*) FROM video`)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}

	return n, nil
}

func (r *SQLVideoRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query, args = r.rebind(query, args...)
	return r.db.ExecContext(ctx, query, args...)
}

func (r *SQLVideoRepository) findOne(ctx context.Context, query string, args ...any) (*model.Video, error) {
	videos, err := r.findMany(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, ErrNotFound
	}

	return videos[0], nil
}

func (r *SQLVideoRepository) findMany(ctx context.Context, query string, args ...any) ([]*model.Video, error) {
	query, args = r.rebind(query, args...)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []*model.Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return videos, nil
}

func scanVideo(rows *sql.Rows) (*model.Video, error) {
	var (
		video       model.Video
		ytID        string
		mapped      string
		timestamped string
		related     string
		labels      string
		createdAt   int64
	)
	if err := rows.Scan(
		&video.ID,
		&ytID,
		&video.Title,
		&video.Channel,
		&video.Thumbnail,
		&video.Transcript,
		&video.ConceptTitle,
		&video.ConceptSummary,
		&mapped,
		&timestamped,
		&related,
		&labels,
		&createdAt,
	); err != nil {
		return nil, err
	}
	video.YoutubeID = model.YoutubeVideoID(ytID)
	video.CreatedAt = time.UnixMilli(createdAt).UTC()
	if err := json.Unmarshal([]byte(mapped), &video.MappedConcepts); err != nil {
		return nil, fmt.Errorf("decoding mapped concepts of %s: %w", ytID, err)
	}
	if err := json.Unmarshal([]byte(timestamped), &video.TimestampedConcepts); err != nil {
		return nil, fmt.Errorf("decoding timestamped concepts of %s: %w", ytID, err)
	}
	if err := json.Unmarshal([]byte(related), &video.RelatedVideos); err != nil {
		return nil, fmt.Errorf("decoding related videos of %s: %w", ytID, err)
	}
	if len(video.MappedConcepts) == 0 {
		video.MappedConcepts = nil
	}
	if len(video.TimestampedConcepts) == 0 {
		video.TimestampedConcepts = nil
	}
	if len(video.RelatedVideos) == 0 {
		video.RelatedVideos = nil
	}

	return &video, nil
}

// rebind rewrites $n placeholders to '?' for positional drivers, repeating
// arguments where a placeholder occurs more than once.
func (r *SQLVideoRepository) rebind(query string, args ...any) (string, []any) {
	if !r.dialect.positional {
		return query, args
	}

	var sb strings.Builder
	bound := make([]any, 0, len(args))
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			sb.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			sb.WriteByte(query[i])
			continue
		}
		sb.WriteByte('?')
		bound = append(bound, args[n-1])
		i = j - 1
	}

	return sb.String(), bound
}

func (r *SQLVideoRepository) migrate(wanted []string) error {
	if _, err := r.db.Exec(r.dialect.migrationTable); err != nil {
		return err
	}

	// find existing
	rows, err := r.db.Query(`SELECT query FROM migration ORDER BY id`)
	if err != nil {
		return err
	}

	existing := []string{}
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, query)
	}
	rows.Close()

	// compare
	missing, err := compareMigrations(wanted, existing)
	if err != nil {
		return err
	}

	// execute missing
	for _, query := range missing {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}

		// register
		insert, args := r.rebind(`INSERT INTO migration (query) VALUES ($1)`, query)
		if _, err := r.db.Exec(insert, args...); err != nil {
			return err
		}
	}

	return nil
}

func compareMigrations(wanted, existing []string) ([]string, error) {
	needed := []string{}
	if len(wanted) < len(existing) {
		return []string{}, fmt.Errorf("not enough migrations")
	}

	for i, want := range wanted {
		switch {
		case i >= len(existing):
			needed = append(needed, want)
		case want == existing[i]:
			// do nothing
		case want != existing[i]:
			return []string{}, fmt.Errorf("incompatible migration: %v", want)
		}
	}

	return needed, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func encodeJSON[T any](items []T, empty []T) (string, error) {
	if items == nil {
		items = empty
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", err
	}

	return strings.TrimSpace(buf.String()), nil
}
