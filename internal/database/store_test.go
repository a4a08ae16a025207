package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryan-buckman/spacetraveling/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite(t *testing.T) {
	db := openSQLite(t)
	assert.Equal(t, "SQLite", db.DatabaseType())
	assert.False(t, db.SupportsHighConcurrency())
	testStore(t, db)
}

// TestPostgres runs against a real server when TEST_DATABASE_URL is set.
func TestPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := NewPostgres(url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.ReplacePages(nil))
	assert.Equal(t, "PostgreSQL", db.DatabaseType())
	testStore(t, db)
}

func testStore(t *testing.T, s Store) {
	t.Helper()

	_, err := s.GetPage("/")
	assert.True(t, errors.Is(err, ErrNotFound))

	generated := time.Date(2021, time.March, 15, 10, 0, 0, 0, time.UTC)
	home := &model.Page{Path: "/", Status: 200, ContentType: "text/html; charset=utf-8", Body: []byte("<h1>home</h1>"), GeneratedAt: generated}
	require.NoError(t, s.SavePage(home))

	got, err := s.GetPage("/")
	require.NoError(t, err)
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, "text/html; charset=utf-8", got.ContentType)
	assert.Equal(t, []byte("<h1>home</h1>"), got.Body)
	assert.True(t, got.GeneratedAt.Equal(generated))

	home.Body = []byte("<h1>home v2</h1>")
	require.NoError(t, s.SavePage(home))
	got, err = s.GetPage("/")
	require.NoError(t, err)
	assert.Equal(t, []byte("<h1>home v2</h1>"), got.Body)

	missing := &model.Page{Path: "/post/missing", Status: 404, ContentType: "text/html; charset=utf-8", Body: []byte("nf")}
	require.NoError(t, s.SavePage(missing))
	assert.False(t, missing.GeneratedAt.IsZero())

	pages, err := s.ListPages()
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "/", pages[0].Path)
	assert.Equal(t, "/post/missing", pages[1].Path)
	assert.Equal(t, 404, pages[1].Status)

	feed := &model.Page{Path: "/feed.xml", Status: 200, ContentType: "application/rss+xml", Body: []byte("<rss/>")}
	require.NoError(t, s.ReplacePages([]*model.Page{home, feed}))
	pages, err = s.ListPages()
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "/", pages[0].Path)
	assert.Equal(t, "/feed.xml", pages[1].Path)

	// A duplicate path fails the insert and rolls the whole replacement back.
	dup := &model.Page{Path: "/post/a", Status: 200, ContentType: "text/html", Body: []byte("a")}
	err = s.ReplacePages([]*model.Page{dup, dup})
	require.Error(t, err)
	pages, err = s.ListPages()
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "/", pages[0].Path)

	require.NoError(t, s.ReplacePages(nil))
	pages, err = s.ListPages()
	require.NoError(t, err)
	assert.Empty(t, pages)

	_, err = s.GetSetting(model.SettingLastBuild)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.SetSetting(model.SettingLastBuild, "a"))
	require.NoError(t, s.SetSetting(model.SettingLastBuild, "b"))
	val, err := s.GetSetting(model.SettingLastBuild)
	require.NoError(t, err)
	assert.Equal(t, "b", val)
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open("", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "SQLite", s.DatabaseType())
}
