package user

// User represents a person record in the directory.
type User struct {
	ID          int64  `json:"id"`           // ID is assigned by the store and never changes
	FirstName   string `json:"first_name"`   // FirstName is free text
	LastName    string `json:"last_name"`    // LastName is free text
	Position    string `json:"position"`     // Position is the job title, free text
	PhoneNumber string `json:"phone_number"` // PhoneNumber is unique across all users
	Email       string `json:"email"`        // Email is unique across all users
}

// Patch describes a partial update. A nil field is left unchanged;
// a non-nil field replaces the current value, even when it points to "".
type Patch struct {
	FirstName   *string
	LastName    *string
	Position    *string
	PhoneNumber *string
	Email       *string
}

// Apply returns a copy of u with every supplied field of p applied.
func (p Patch) Apply(u User) User {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Position != nil {
		u.Position = *p.Position
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	return u
}

// EmailChanged reports whether p supplies an email different from current.
func (p Patch) EmailChanged(current User) bool {
	return p.Email != nil && *p.Email != current.Email
}

// PhoneNumberChanged reports whether p supplies a phone number different from current.
func (p Patch) PhoneNumberChanged(current User) bool {
	return p.PhoneNumber != nil && *p.PhoneNumber != current.PhoneNumber
}
