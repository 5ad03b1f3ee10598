package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestNewSQLiteDB_InMemoryRoundTrip(t *testing.T) {
	db, err := NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db, &widget{}))

	require.NoError(t, db.Create(&widget{Name: "citrate"}).Error)

	var got widget
	require.NoError(t, db.First(&got).Error)
	assert.Equal(t, "citrate", got.Name)
}
