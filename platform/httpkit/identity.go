// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated caller of a request.
// It abstracts identity extraction from the web framework, so services
// receive tenant and role information without depending on Gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// OrgID returns the organization (tenant) the user belongs to.
	OrgID() uuid.UUID
	// Role returns the user's role (owner, reception or artist).
	Role() string
	// ArtistID returns the artist record bound to this user, if any.
	// Non-nil only for users with the artist role.
	ArtistID() *uuid.UUID
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	orgID         uuid.UUID
	role          string
	artistID      *uuid.UUID
	authenticated bool
}

func (i *identity) UserID() uuid.UUID    { return i.userID }
func (i *identity) OrgID() uuid.UUID     { return i.orgID }
func (i *identity) Role() string         { return i.role }
func (i *identity) ArtistID() *uuid.UUID { return i.artistID }
func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	orgID, orgOK := c.Get(ContextOrgIDKey)
	if !userOK || !orgOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}
	oid, ok := orgID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	role, _ := c.Get(ContextRoleKey)
	roleText, _ := role.(string)

	var artistID *uuid.UUID
	if raw, ok := c.Get(ContextArtistIDKey); ok {
		if aid, ok := raw.(uuid.UUID); ok {
			artistID = &aid
		}
	}

	return &identity{
		userID:        uid,
		orgID:         oid,
		role:          roleText,
		artistID:      artistID,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
