package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"inkwell/internal/domain/comment"
	"inkwell/internal/domain/post"
	"inkwell/internal/platform/migration"
)

// setupPostgres starts a disposable PostgreSQL and applies the migrations.
// TEST_POSTGRES_URL points the tests at an existing database instead.
func setupPostgres(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()
	terminate := func() {}

	connStr := os.Getenv("TEST_POSTGRES_URL")
	if connStr == "" {
		container, err := tcpostgres.RunContainer(ctx,
			testcontainers.WithImage("postgres:16"),
			tcpostgres.WithDatabase("test"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
		)
		if err != nil {
			t.Skipf("skipping postgres integration test: %v", err)
		}
		terminate = func() { _ = container.Terminate(context.Background()) }

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// container might still be starting
	for i := 0; ; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		if i == 50 {
			pool.Close()
			terminate()
			t.Skipf("failed to ping test database: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := applyTestMigrations(connStr); err != nil {
		pool.Close()
		terminate()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	return pool, func() {
		pool.Close()
		terminate()
	}
}

// applyTestMigrations runs the embedded schema, the same one cmd/migrator
// ships.
func applyTestMigrations(connStr string) error {
	runner, err := migration.New(migration.Config{DatabaseURL: connStr})
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()
	return runner.Up(context.Background())
}

// cleanupTables removes all data from test tables.
func cleanupTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), "TRUNCATE TABLE comments, posts CASCADE")
	require.NoError(t, err)
}

func testPost(overrides ...func(*post.Post)) *post.Post {
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &post.Post{
		ID:        uuid.New(),
		AuthorID:  uuid.New(),
		Title:     "Test Post",
		Body:      "<p>body</p>",
		Category:  "general",
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, override := range overrides {
		override(p)
	}
	return p
}

func testComment(postID uuid.UUID, parent *uuid.UUID, createdAt time.Time) *comment.Comment {
	return &comment.Comment{
		ID:        uuid.New(),
		PostID:    postID,
		AuthorID:  uuid.New(),
		Content:   "a comment",
		ParentID:  parent,
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
		UpdatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}
}
