// Package auth holds the request identity attached by the external
// authentication layer. The router core only ever inspects the user id and
// the admin flag; everything else exists to satisfy gimlet's user interface.
package auth

import (
	"context"

	"github.com/evergreen-ci/gimlet"
)

type User struct {
	Id           string   `bson:"_id" json:"id"`
	Admin        bool     `bson:"admin" json:"admin"`
	Name         string   `bson:"name,omitempty" json:"name,omitempty"`
	EmailAddress string   `bson:"email,omitempty" json:"email,omitempty"`
	APIKey       string   `bson:"apikey,omitempty" json:"-"`
	SystemRoles  []string `bson:"roles,omitempty" json:"roles,omitempty"`
}

func (u *User) Username() string    { return u.Id }
func (u *User) DisplayName() string { return u.Name }
func (u *User) Email() string       { return u.EmailAddress }
func (u *User) GetAPIKey() string   { return u.APIKey }
func (u *User) IsNil() bool         { return u == nil }

func (u *User) GetAccessToken() string  { return "" }
func (u *User) GetRefreshToken() string { return "" }

func (u *User) Roles() []string {
	out := make([]string, len(u.SystemRoles))
	copy(out, u.SystemRoles)
	return out
}

func (u *User) HasPermission(opts gimlet.PermissionOpts) bool { return u.Admin }

// GetUser returns the user attached to the request context, or nil for an
// anonymous request.
func GetUser(ctx context.Context) *User {
	gu := gimlet.GetUser(ctx)
	if gu == nil {
		return nil
	}
	if u, ok := gu.(*User); ok {
		return u
	}
	// an identity from a different user manager still acts as an
	// authenticated non-admin
	return &User{Id: gu.Username(), Name: gu.DisplayName(), EmailAddress: gu.Email()}
}
