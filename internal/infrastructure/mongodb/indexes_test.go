package mongodb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/mongodb"
)

func TestGetAllIndexDefinitions(t *testing.T) {
	defs := mongodb.GetAllIndexDefinitions()

	byCollection := make(map[string]int)
	for _, def := range defs {
		assert.NotEmpty(t, def.Keys, "index on %s has no keys", def.Collection)
		assert.NotNil(t, def.Options, "index on %s has no options", def.Collection)
		byCollection[def.Collection]++
	}

	assert.Equal(t, 2, byCollection[mongodb.CollectionRegistrations])
	assert.Equal(t, 1, byCollection[mongodb.CollectionBans])
	assert.Equal(t, 2, byCollection[mongodb.CollectionPendingRegistrations])
}

func TestCreateAllIndexes(t *testing.T) {
	t.Skip("Requires MongoDB integration test setup")
}
