package domain

import (
	"errors"
	"time"
)

// User is the core user entity.
type User struct {
	ID        int64
	Email     string
	FirstName *string
	LastName  *string
	Phone     *string
	Status    UserStatus
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// UserStatus is the lifecycle status of a live user. Values match the wire and storage encoding.
type UserStatus int

const (
	UserStatusEnabled  UserStatus = 1
	UserStatusDisabled UserStatus = 2
)

// Valid reports whether s is one of the known statuses.
func (s UserStatus) Valid() bool {
	return s == UserStatusEnabled || s == UserStatusDisabled
}

func (s UserStatus) String() string {
	switch s {
	case UserStatusEnabled:
		return "enabled"
	case UserStatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Fields holds the user-supplied fields of a new user.
type Fields struct {
	Email     string
	FirstName *string
	LastName  *string
	Phone     *string
}

// Patch holds a partial update. A nil field leaves the stored value untouched.
type Patch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
}

// Empty reports whether the patch carries no field.
func (p Patch) Empty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil && p.Phone == nil
}

// Apply overwrites the fields of u that are set in p. Status is never touched.
func (p Patch) Apply(u *User) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.FirstName != nil {
		u.FirstName = p.FirstName
	}
	if p.LastName != nil {
		u.LastName = p.LastName
	}
	if p.Phone != nil {
		u.Phone = p.Phone
	}
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Status == 0 {
		u.Status = UserStatusEnabled
	}
	if !u.Status.Valid() {
		return errors.New("status must be enabled or disabled")
	}
	return nil
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.FirstName = cloneString(u.FirstName)
	c.LastName = cloneString(u.LastName)
	c.Phone = cloneString(u.Phone)
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
