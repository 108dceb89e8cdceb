package models_test

import (
	"testing"
	"time"

	"github.com/SergeiKhy/shortlinks/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	anon := models.Anonymous()
	_, ok := anon.UserID()
	assert.False(t, ok)
	assert.True(t, anon.IsAnonymous())
	assert.Nil(t, anon.OwnerID())
	assert.Equal(t, "anonymous", anon.String())

	id := uuid.New()
	user := models.Authenticated(id)
	got, ok := user.UserID()
	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, id, *user.OwnerID())
}

func TestLink_OwnedBy(t *testing.T) {
	owner := uuid.New()
	link := &models.Link{OwnerID: &owner}

	assert.True(t, link.OwnedBy(models.Authenticated(owner)))
	assert.False(t, link.OwnedBy(models.Authenticated(uuid.New())))
	assert.False(t, link.OwnedBy(models.Anonymous()))

	anonymousLink := &models.Link{}
	assert.False(t, anonymousLink.OwnedBy(models.Anonymous()))
	assert.False(t, anonymousLink.OwnedBy(models.Authenticated(owner)))
}

func TestLink_IsExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&models.Link{}).IsExpired(now))
	assert.True(t, (&models.Link{ExpiresAt: &past}).IsExpired(now))
	assert.False(t, (&models.Link{ExpiresAt: &future}).IsExpired(now))
}
