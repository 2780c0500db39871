package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snippetsmaster/snippets-back/internal/db"
)

func validCreate(tagIDs ...uint64) SnippetCreate {
	return SnippetCreate{
		Title:       "hello",
		Description: "desc",
		Code:        "fmt.Println(\"hi\")",
		Language:    "go",
		TagIDs:      tagIDs,
	}
}

func TestSnippetCreateWithTags(t *testing.T) {
	gdb := newTestDB(t)
	tags := NewTags(gdb, newTestLogger())
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")
	tag, err := tags.Create(alice.ID, "go")
	require.NoError(t, err)

	snippet, err := s.Create(alice.ID, validCreate(tag.ID))
	require.NoError(t, err)
	require.Len(t, snippet.Tags, 1)
	assert.Equal(t, "go", snippet.Tags[0].Name)
	assert.Equal(t, alice.ID, snippet.UserID)
}

func TestSnippetCreateForeignTagRollsBack(t *testing.T) {
	gdb := newTestDB(t)
	tags := NewTags(gdb, newTestLogger())
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")
	bob := createTestUser(t, gdb, "bob")
	bobTag, err := tags.Create(bob.ID, "go")
	require.NoError(t, err)

	_, err = s.Create(alice.ID, validCreate(bobTag.ID))
	assert.Equal(t, ErrInvalidTags, err)

	// The snippet insert must not survive the failed tag validation.
	var count int64
	require.NoError(t, gdb.Model(&db.Snippet{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSnippetCreateUnknownTagRollsBack(t *testing.T) {
	gdb := newTestDB(t)
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")

	_, err := s.Create(alice.ID, validCreate(9999))
	assert.Equal(t, ErrInvalidTags, err)

	var count int64
	require.NoError(t, gdb.Model(&db.Snippet{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSnippetGetScopedToOwner(t *testing.T) {
	gdb := newTestDB(t)
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")
	bob := createTestUser(t, gdb, "bob")

	snippet, err := s.Create(alice.ID, validCreate())
	require.NoError(t, err)

	_, err = s.GetByID(bob.ID, snippet.ID)
	assert.Equal(t, ErrSnippetNotFound, err)

	mine, err := s.GetMine(alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestSnippetUpdate(t *testing.T) {
	gdb := newTestDB(t)
	tags := NewTags(gdb, newTestLogger())
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")
	goTag, err := tags.Create(alice.ID, "go")
	require.NoError(t, err)
	sqlTag, err := tags.Create(alice.ID, "sql")
	require.NoError(t, err)

	snippet, err := s.Create(alice.ID, validCreate(goTag.ID))
	require.NoError(t, err)

	t.Run("field diff", func(t *testing.T) {
		got, err := s.Update(alice.ID, snippet.ID, SnippetUpdate{Title: "hello2"})
		require.NoError(t, err)
		assert.Equal(t, "hello2", got.Title)
		assert.Equal(t, "desc", got.Description)
	})

	t.Run("no changes", func(t *testing.T) {
		_, err := s.Update(alice.ID, snippet.ID, SnippetUpdate{Title: "hello2"})
		assert.Equal(t, ErrNoChanges, err)
	})

	t.Run("replace tag links", func(t *testing.T) {
		newTags := []uint64{sqlTag.ID}
		got, err := s.Update(alice.ID, snippet.ID, SnippetUpdate{TagIDs: &newTags})
		require.NoError(t, err)
		require.Len(t, got.Tags, 1)
		assert.Equal(t, "sql", got.Tags[0].Name)
	})

	t.Run("empty tag list clears links", func(t *testing.T) {
		empty := []uint64{}
		got, err := s.Update(alice.ID, snippet.ID, SnippetUpdate{TagIDs: &empty})
		require.NoError(t, err)
		assert.Len(t, got.Tags, 0)
	})

	t.Run("not owned", func(t *testing.T) {
		bob := createTestUser(t, gdb, "bob")
		_, err := s.Update(bob.ID, snippet.ID, SnippetUpdate{Title: "stolen"})
		assert.Equal(t, ErrSnippetNotFound, err)
	})
}

func TestSnippetUpdateInvalidTagsKeepsOldLinks(t *testing.T) {
	gdb := newTestDB(t)
	tags := NewTags(gdb, newTestLogger())
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")
	bob := createTestUser(t, gdb, "bob")
	goTag, err := tags.Create(alice.ID, "go")
	require.NoError(t, err)
	bobTag, err := tags.Create(bob.ID, "go")
	require.NoError(t, err)

	snippet, err := s.Create(alice.ID, validCreate(goTag.ID))
	require.NoError(t, err)

	bad := []uint64{bobTag.ID}
	_, err = s.Update(alice.ID, snippet.ID, SnippetUpdate{TagIDs: &bad})
	assert.Equal(t, ErrInvalidTags, err)

	got, err := s.GetByID(alice.ID, snippet.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, goTag.ID, got.Tags[0].ID)
}

func TestSnippetDeleteCascades(t *testing.T) {
	gdb := newTestDB(t)
	tags := NewTags(gdb, newTestLogger())
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")
	tag, err := tags.Create(alice.ID, "go")
	require.NoError(t, err)

	snippet, err := s.Create(alice.ID, validCreate(tag.ID))
	require.NoError(t, err)

	_, err = s.ToggleFavorite(alice.ID, snippet.ID)
	require.NoError(t, err)

	require.NoError(t, s.Delete(alice.ID, snippet.ID))

	var count int64
	require.NoError(t, gdb.Table("snippet_tags").Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, gdb.Table("user_favorites").Count(&count).Error)
	assert.Equal(t, int64(0), count)

	_, err = s.GetByID(alice.ID, snippet.ID)
	assert.Equal(t, ErrSnippetNotFound, err)
}

func TestToggleFavorite(t *testing.T) {
	gdb := newTestDB(t)
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")
	snippet, err := s.Create(alice.ID, validCreate())
	require.NoError(t, err)

	favorited, err := s.ToggleFavorite(alice.ID, snippet.ID)
	require.NoError(t, err)
	assert.True(t, favorited)

	favorites, err := s.Favorites(alice.ID)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, snippet.ID, favorites[0].ID)

	favorited, err = s.ToggleFavorite(alice.ID, snippet.ID)
	require.NoError(t, err)
	assert.False(t, favorited)

	favorites, err = s.Favorites(alice.ID)
	require.NoError(t, err)
	assert.Len(t, favorites, 0)
}

func TestToggleFavoriteNotOwned(t *testing.T) {
	gdb := newTestDB(t)
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")
	bob := createTestUser(t, gdb, "bob")
	snippet, err := s.Create(alice.ID, validCreate())
	require.NoError(t, err)

	_, err = s.ToggleFavorite(bob.ID, snippet.ID)
	assert.Equal(t, ErrSnippetNotFound, err)

	_, err = s.ToggleFavorite(alice.ID, 9999)
	assert.Equal(t, ErrSnippetNotFound, err)
}

func TestSnippetTagsListing(t *testing.T) {
	gdb := newTestDB(t)
	tags := NewTags(gdb, newTestLogger())
	s := NewSnippets(gdb, newTestLogger())

	alice := createTestUser(t, gdb, "alice")
	bob := createTestUser(t, gdb, "bob")
	goTag, err := tags.Create(alice.ID, "go")
	require.NoError(t, err)
	sqlTag, err := tags.Create(alice.ID, "sql")
	require.NoError(t, err)

	snippet, err := s.Create(alice.ID, validCreate(goTag.ID, sqlTag.ID))
	require.NoError(t, err)

	got, err := s.TagsFor(alice.ID, snippet.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "go", got[0].Name)
	assert.Equal(t, "sql", got[1].Name)

	_, err = s.TagsFor(bob.ID, snippet.ID)
	assert.Equal(t, ErrSnippetNotFound, err)
}
