package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-post/pkg/simplepost"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplepost.MetadataStore using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// EnsureSchema creates the posts, images and body tables if they are missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return r.handlePostgresError("ensure schema", err)
		}
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "slug") {
				return simplepost.ErrSlugTaken
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found in %s: %w", operation, simplepost.ErrPostNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("check %s failed in %s", pgErr.ConstraintName, operation)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Post operations

const postColumns = `id, slug, title, description, date, visibility, user_id`

func scanPost(row pgx.Row) (*simplepost.Post, error) {
	var post simplepost.Post
	err := row.Scan(&post.ID, &post.Slug, &post.Title, &post.Description,
		&post.Date, &post.Visibility, &post.UserID)
	if err != nil {
		return nil, err
	}
	post.Date = post.Date.UTC()
	return &post, nil
}

func (r *Repository) FindPostBySlug(ctx context.Context, slug string) (*simplepost.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE slug = $1`

	post, err := scanPost(r.db.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepost.ErrPostNotFound
		}
		return nil, r.handlePostgresError("find post", err)
	}
	return post, nil
}

func (r *Repository) InsertPost(ctx context.Context, post *simplepost.Post) error {
	query := `
		INSERT INTO posts (slug, title, description, date, visibility, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		post.Slug, post.Title, post.Description, post.Date,
		string(post.Visibility), post.UserID).Scan(&post.ID)
	if err != nil {
		return r.handlePostgresError("insert post", err)
	}
	return nil
}

func (r *Repository) UpdatePostFields(ctx context.Context, id int64, fields simplepost.PostFields) error {
	if fields.IsEmpty() {
		return nil
	}

	set := []string{}
	args := []interface{}{id}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if fields.Title != nil {
		add("title", *fields.Title)
	}
	if fields.Description != nil {
		add("description", *fields.Description)
	}
	if fields.Date != nil {
		add("date", *fields.Date)
	}
	if fields.Visibility != nil {
		add("visibility", string(*fields.Visibility))
	}

	query := "UPDATE posts SET " + strings.Join(set, ", ") + " WHERE id = $1"
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return r.handlePostgresError("update post fields", err)
	}
	if tag.RowsAffected() == 0 {
		return simplepost.ErrPostNotFound
	}
	return nil
}

func (r *Repository) DeletePost(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete post", err)
	}
	if tag.RowsAffected() == 0 {
		return simplepost.ErrPostNotFound
	}
	return nil
}

func (r *Repository) ListPosts(ctx context.Context, params simplepost.ListPostsParams) ([]*simplepost.Post, error) {
	where := "1=1"
	args := []interface{}{}
	argIndex := 1

	if params.UserID != nil {
		where += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, *params.UserID)
		argIndex++
	}
	if params.Visibility != nil {
		where += fmt.Sprintf(" AND visibility = $%d", argIndex)
		args = append(args, string(*params.Visibility))
		argIndex++
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + where + ` ORDER BY date DESC, id DESC`
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, params.Limit)
		argIndex++
	}
	if params.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, params.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list posts", err)
	}
	defer rows.Close()

	var posts []*simplepost.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan post", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list posts", err)
	}
	return posts, nil
}

// Image operations

func (r *Repository) ListImagesForPost(ctx context.Context, postID int64) ([]*simplepost.Image, error) {
	query := `SELECT id, post_id, url, width, height FROM images WHERE post_id = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, postID)
	if err != nil {
		return nil, r.handlePostgresError("list images", err)
	}
	defer rows.Close()

	var images []*simplepost.Image
	for rows.Next() {
		var img simplepost.Image
		if err := rows.Scan(&img.ID, &img.PostID, &img.URL, &img.Width, &img.Height); err != nil {
			return nil, r.handlePostgresError("scan image", err)
		}
		images = append(images, &img)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list images", err)
	}
	return images, nil
}

func (r *Repository) InsertImage(ctx context.Context, image *simplepost.Image) error {
	query := `INSERT INTO images (post_id, url, width, height) VALUES ($1, $2, $3, $4) RETURNING id`

	err := r.db.QueryRow(ctx, query, image.PostID, image.URL, image.Width, image.Height).Scan(&image.ID)
	if err != nil {
		return r.handlePostgresError("insert image", err)
	}
	return nil
}

func (r *Repository) DeleteImage(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM images WHERE id = $1`, id); err != nil {
		return r.handlePostgresError("delete image", err)
	}
	return nil
}

// Paragraph operations

func (r *Repository) ListParagraphsForPost(ctx context.Context, postID int64) ([]*simplepost.Paragraph, error) {
	query := `SELECT id, post_id, para_index, content FROM body WHERE post_id = $1 ORDER BY para_index, id`

	rows, err := r.db.Query(ctx, query, postID)
	if err != nil {
		return nil, r.handlePostgresError("list paragraphs", err)
	}
	defer rows.Close()

	var paragraphs []*simplepost.Paragraph
	for rows.Next() {
		var p simplepost.Paragraph
		if err := rows.Scan(&p.ID, &p.PostID, &p.Index, &p.Content); err != nil {
			return nil, r.handlePostgresError("scan paragraph", err)
		}
		paragraphs = append(paragraphs, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list paragraphs", err)
	}
	return paragraphs, nil
}

func (r *Repository) InsertParagraphs(ctx context.Context, postID int64, contents []string) error {
	if len(contents) == 0 {
		return nil
	}
	query := `
		INSERT INTO body (post_id, para_index, content)
		SELECT $1, t.ord - 1, t.content
		FROM unnest($2::text[]) WITH ORDINALITY AS t(content, ord)`

	if _, err := r.db.Exec(ctx, query, postID, contents); err != nil {
		return r.handlePostgresError("insert paragraphs", err)
	}
	return nil
}

func (r *Repository) DeleteParagraphsForPost(ctx context.Context, postID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM body WHERE post_id = $1`, postID); err != nil {
		return r.handlePostgresError("delete paragraphs", err)
	}
	return nil
}
