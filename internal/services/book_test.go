package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

func TestRockBookRemoveAndRestore(t *testing.T) {
	b := NewRockBook()
	b.ReplaceAll([]models.Rock{{ID: "1"}, {ID: "2"}, {ID: "3"}})

	rock, index, ok := b.Remove("2")
	require.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Equal(t, []string{"1", "3"}, ids(b.List()))

	b.RestoreAt(rock, index)
	assert.Equal(t, []string{"1", "2", "3"}, ids(b.List()))

	// Restoring an id that already came back is a no-op
	b.RestoreAt(models.Rock{ID: "2", Name: "dup"}, 0)
	assert.Equal(t, []string{"1", "2", "3"}, ids(b.List()))

	b.RestoreAt(models.Rock{ID: "4"}, 99)
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(b.List()))

	_, _, ok = b.Remove("missing")
	assert.False(t, ok)
}

func TestRockBookReturnsCopies(t *testing.T) {
	b := NewRockBook()
	b.Upsert(models.Rock{ID: "1", Photos: []string{"a"}})

	list := b.List()
	list[0].Photos[0] = "changed"

	got, ok := b.Get("1")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got.Photos)
}

func TestRockBookInsertReplace(t *testing.T) {
	b := NewRockBook()
	assert.True(t, b.Insert(models.Rock{ID: "1", Name: "a"}))
	assert.False(t, b.Insert(models.Rock{ID: "1", Name: "b"}))
	assert.False(t, b.Replace(models.Rock{ID: "2"}))
	assert.True(t, b.Replace(models.Rock{ID: "1", Name: "c"}))

	got, _ := b.Get("1")
	assert.Equal(t, "c", got.Name)
	assert.Equal(t, 1, b.Len())
}

func TestRockBookReplaceAllDedupes(t *testing.T) {
	b := NewRockBook()
	b.ReplaceAll([]models.Rock{{ID: "1", Name: "old"}, {ID: "2"}, {ID: "1", Name: "new"}})

	assert.Equal(t, 2, b.Len())
	got, _ := b.Get("1")
	assert.Equal(t, "new", got.Name)
}

func TestMutationGuard(t *testing.T) {
	g := NewMutationGuard()

	t1 := g.Begin("1")
	t2 := g.Begin("1")
	g.Begin("2")
	assert.NotEqual(t, t1, t2)
	assert.Equal(t, 3, g.Pending())

	g.Cancel("1", t1)
	assert.Equal(t, 2, g.Pending())
	g.Cancel("1", "unknown")
	assert.Equal(t, 2, g.Pending())

	assert.True(t, g.Consume("1"))
	assert.False(t, g.Consume("1"))
	assert.False(t, g.Consume("3"))
	assert.True(t, g.Consume("2"))
	assert.Zero(t, g.Pending())
}
