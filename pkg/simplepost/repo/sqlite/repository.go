package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tendant/simple-post/pkg/simplepost"
)

// dates are stored as fixed-width UTC text so they sort lexically
const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository implements simplepost.MetadataStore on a SQLite file.
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the tables.
func New(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	// Pragmas in the DSN apply to every pooled connection, which matters for
	// foreign_keys: it is per connection and the cascades depend on it.
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	r := &Repository{db: db}
	if err := r.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) ensureSchema() error {
	_, err := r.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL,
    visibility TEXT NOT NULL DEFAULT 'public' CHECK (visibility IN ('public', 'private')),
    user_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_date_idx ON posts (date DESC, id DESC);
CREATE TABLE IF NOT EXISTS images (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    width INTEGER,
    height INTEGER
);
CREATE INDEX IF NOT EXISTS images_post_id_idx ON images (post_id);
CREATE TABLE IF NOT EXISTS body (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
    para_index INTEGER NOT NULL,
    content TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS body_post_id_idx ON body (post_id, para_index);
`)
	return err
}

func (r *Repository) handleSQLiteError(operation string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: posts.slug"):
		return simplepost.ErrSlugTaken
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("referenced record not found in %s: %w", operation, simplepost.ErrPostNotFound)
	case strings.Contains(msg, "no such table"):
		return fmt.Errorf("table does not exist - database migration required")
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Post operations

const postColumns = `id, slug, title, description, date, visibility, user_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*simplepost.Post, error) {
	var (
		post       simplepost.Post
		date       string
		visibility string
		userID     string
	)
	if err := row.Scan(&post.ID, &post.Slug, &post.Title, &post.Description, &date, &visibility, &userID); err != nil {
		return nil, err
	}
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id %q: %w", userID, err)
	}
	post.Date = t.UTC()
	post.Visibility = simplepost.Visibility(visibility)
	post.UserID = uid
	return &post, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func (r *Repository) FindPostBySlug(ctx context.Context, slug string) (*simplepost.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, simplepost.ErrPostNotFound
		}
		return nil, r.handleSQLiteError("find post", err)
	}
	return post, nil
}

func (r *Repository) InsertPost(ctx context.Context, post *simplepost.Post) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (slug, title, description, date, visibility, user_id) VALUES (?, ?, ?, ?, ?, ?)`,
		post.Slug, post.Title, post.Description, formatDate(post.Date), string(post.Visibility), post.UserID.String())
	if err != nil {
		return r.handleSQLiteError("insert post", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return r.handleSQLiteError("insert post", err)
	}
	post.ID = id
	return nil
}

func (r *Repository) UpdatePostFields(ctx context.Context, id int64, fields simplepost.PostFields) error {
	if fields.IsEmpty() {
		return nil
	}

	var (
		set  []string
		args []any
	)
	if fields.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *fields.Description)
	}
	if fields.Date != nil {
		set = append(set, "date = ?")
		args = append(args, formatDate(*fields.Date))
	}
	if fields.Visibility != nil {
		set = append(set, "visibility = ?")
		args = append(args, string(*fields.Visibility))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE posts SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return r.handleSQLiteError("update post fields", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return simplepost.ErrPostNotFound
	}
	return nil
}

func (r *Repository) DeletePost(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return r.handleSQLiteError("delete post", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return simplepost.ErrPostNotFound
	}
	return nil
}

func (r *Repository) ListPosts(ctx context.Context, params simplepost.ListPostsParams) ([]*simplepost.Post, error) {
	where := "1=1"
	var args []any
	if params.UserID != nil {
		where += " AND user_id = ?"
		args = append(args, params.UserID.String())
	}
	if params.Visibility != nil {
		where += " AND visibility = ?"
		args = append(args, string(*params.Visibility))
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + where + ` ORDER BY date DESC, id DESC`
	// SQLite requires LIMIT when OFFSET is present; -1 means no limit
	limit := params.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, params.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.handleSQLiteError("list posts", err)
	}
	defer rows.Close()

	var posts []*simplepost.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, r.handleSQLiteError("scan post", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleSQLiteError("list posts", err)
	}
	return posts, nil
}

// Image operations

func (r *Repository) ListImagesForPost(ctx context.Context, postID int64) ([]*simplepost.Image, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, post_id, url, width, height FROM images WHERE post_id = ? ORDER BY id`, postID)
	if err != nil {
		return nil, r.handleSQLiteError("list images", err)
	}
	defer rows.Close()

	var images []*simplepost.Image
	for rows.Next() {
		var (
			img           simplepost.Image
			width, height sql.NullInt64
		)
		if err := rows.Scan(&img.ID, &img.PostID, &img.URL, &width, &height); err != nil {
			return nil, r.handleSQLiteError("scan image", err)
		}
		img.Width = intPtr(width)
		img.Height = intPtr(height)
		images = append(images, &img)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleSQLiteError("list images", err)
	}
	return images, nil
}

func (r *Repository) InsertImage(ctx context.Context, image *simplepost.Image) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO images (post_id, url, width, height) VALUES (?, ?, ?, ?)`,
		image.PostID, image.URL, nullInt(image.Width), nullInt(image.Height))
	if err != nil {
		return r.handleSQLiteError("insert image", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return r.handleSQLiteError("insert image", err)
	}
	image.ID = id
	return nil
}

func (r *Repository) DeleteImage(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id); err != nil {
		return r.handleSQLiteError("delete image", err)
	}
	return nil
}

// Paragraph operations

func (r *Repository) ListParagraphsForPost(ctx context.Context, postID int64) ([]*simplepost.Paragraph, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, post_id, para_index, content FROM body WHERE post_id = ? ORDER BY para_index, id`, postID)
	if err != nil {
		return nil, r.handleSQLiteError("list paragraphs", err)
	}
	defer rows.Close()

	var paragraphs []*simplepost.Paragraph
	for rows.Next() {
		var p simplepost.Paragraph
		if err := rows.Scan(&p.ID, &p.PostID, &p.Index, &p.Content); err != nil {
			return nil, r.handleSQLiteError("scan paragraph", err)
		}
		paragraphs = append(paragraphs, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleSQLiteError("list paragraphs", err)
	}
	return paragraphs, nil
}

// InsertParagraphs writes all rows in one transaction.
func (r *Repository) InsertParagraphs(ctx context.Context, postID int64, contents []string) error {
	if len(contents) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.handleSQLiteError("insert paragraphs", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO body (post_id, para_index, content) VALUES (?, ?, ?)`)
	if err != nil {
		return r.handleSQLiteError("insert paragraphs", err)
	}
	defer stmt.Close()

	for i, content := range contents {
		if _, err := stmt.ExecContext(ctx, postID, i, content); err != nil {
			return r.handleSQLiteError("insert paragraphs", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return r.handleSQLiteError("insert paragraphs", err)
	}
	return nil
}

func (r *Repository) DeleteParagraphsForPost(ctx context.Context, postID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM body WHERE post_id = ?`, postID); err != nil {
		return r.handleSQLiteError("delete paragraphs", err)
	}
	return nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
