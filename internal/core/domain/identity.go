package domain

import "time"

// DocumentType enumerates the identity documents accepted on a user profile.
type DocumentType string

const (
	DocumentDNI      DocumentType = "dni"
	DocumentNIE      DocumentType = "nie"
	DocumentPassport DocumentType = "passport"
)

// Valid reports whether the document type is one of the known values.
func (d DocumentType) Valid() bool {
	switch d {
	case DocumentDNI, DocumentNIE, DocumentPassport:
		return true
	}
	return false
}

// Gender enumerates the accepted gender values.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether the gender is one of the known values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// User mirrors the persisted representation in the users table.
type User struct {
	ID           string
	Email        string
	Name         string
	Surname      string
	PasswordHash string
	Avatar       *string
	Phone        *string
	TypeDocument *DocumentType
	NDocument    *string
	BirthDate    *time.Time
	Designation  *string
	Gender       *Gender
	IsSuperAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// IsDeleted reports whether the user has been soft deleted.
func (u User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// FullName joins name and surname with a single space.
func (u User) FullName() string {
	if u.Surname == "" {
		return u.Name
	}
	return u.Name + " " + u.Surname
}

// SortKey returns the listing keyset values: name, surname, id.
func (u User) SortKey() []string {
	return []string{u.Name, u.Surname, u.ID}
}

// UserWithAccess is a user loaded together with its roles and effective permissions.
type UserWithAccess struct {
	User
	Roles          []Role
	AllPermissions []Permission
}

// Principal is the authenticated caller resolved from a verified access token.
type Principal struct {
	UserID       string
	TokenID      string
	IsSuperAdmin bool
	IssuedAt     time.Time
	ExpiresAt    time.Time
}
