package marketplace

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the account's privilege role
type UserRole string

const (
	// RoleUser is a regular account
	RoleUser UserRole = "user"
	// RoleAdmin is an administrator account
	RoleAdmin UserRole = "admin"
	// RoleSuperadmin is the seeded root administrator
	RoleSuperadmin UserRole = "superadmin"
)

// UserType describes how the account uses the marketplace. Admin status can
// be carried here as well as in Role: records written by the admin-panel path
// set UserType, records written by the user path set Role. Both fields are
// kept and checked with OR; neither is authoritative.
type UserType string

const (
	// TypeClient posts tasks and hires workers
	TypeClient UserType = "client"
	// TypeWorker offers services through a provider profile
	TypeWorker UserType = "worker"
	// TypeAdmin is an administrator account created through the admin panel
	TypeAdmin UserType = "admin"
)

// ProfileData is the editable, moderated portion of a user account. The same
// shape is used for the live published values, the staged proposal and the
// audit snapshot taken when a proposal is staged.
type ProfileData struct {
	Name         string `json:"name"`
	FirstName    string `json:"fname"`
	Surname      string `json:"sname"`
	OtherName    string `json:"oname"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Whatsapp     string `json:"whatsapp"`
	Location     string `json:"location"`
	Region       string `json:"region"`
	ProfileImage string `json:"profile_image"`
}

// ProfilePatch is a partial edit proposal. Nil fields keep their current
// published value when the patch is applied.
type ProfilePatch struct {
	Name         *string `json:"name,omitempty"`
	FirstName    *string `json:"fname,omitempty"`
	Surname      *string `json:"sname,omitempty"`
	OtherName    *string `json:"oname,omitempty"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Whatsapp     *string `json:"whatsapp,omitempty"`
	Location     *string `json:"location,omitempty"`
	Region       *string `json:"region,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// Apply overlays the patch on a copy of base, field by field.
func (p ProfilePatch) Apply(base ProfileData) ProfileData {
	out := base
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.FirstName != nil {
		out.FirstName = *p.FirstName
	}
	if p.Surname != nil {
		out.Surname = *p.Surname
	}
	if p.OtherName != nil {
		out.OtherName = *p.OtherName
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Phone != nil {
		out.Phone = *p.Phone
	}
	if p.Whatsapp != nil {
		out.Whatsapp = *p.Whatsapp
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.Region != nil {
		out.Region = *p.Region
	}
	if p.ProfileImage != nil {
		out.ProfileImage = *p.ProfileImage
	}
	return out
}

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name         string    `bun:"name,notnull" json:"name,omitempty"`
	FirstName    string    `bun:"fname" json:"fname,omitempty"`
	Surname      string    `bun:"sname" json:"sname,omitempty"`
	OtherName    string    `bun:"oname" json:"oname,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone        string    `bun:"phone" json:"phone,omitempty"`
	Whatsapp     string    `bun:"whatsapp" json:"whatsapp,omitempty"`
	Location     string    `bun:"location" json:"location,omitempty"`
	Region       string    `bun:"region" json:"region,omitempty"`
	ProfileImage string    `bun:"profile_image" json:"profile_image,omitempty"`
	UserType     UserType  `bun:"user_type,notnull" json:"user_type,omitempty"`
	Role         UserRole  `bun:"user_role,notnull" json:"user_role,omitempty"`

	PasswordHash string `bun:"password_hash" json:"-"`

	IsEmailVerified bool `bun:"is_email_verified" json:"is_email_verified"`
	IsApproved      bool `bun:"is_approved" json:"is_approved"`
	IsBlocked       bool `bun:"is_blocked" json:"is_blocked"`

	// Moderation staging. PendingProfile is non-nil exactly while
	// HasPendingChanges is set; OriginalProfile keeps the published values
	// as they were at staging time for audit and diffing.
	HasPendingChanges  bool         `bun:"has_pending_changes" json:"has_pending_changes"`
	PendingProfile     *ProfileData `bun:"pending_profile,type:jsonb" json:"pending_profile,omitempty"`
	OriginalProfile    *ProfileData `bun:"original_profile,type:jsonb" json:"original_profile,omitempty"`
	LastApprovedAt     *time.Time   `bun:"last_approved_at,nullzero" json:"last_approved_at,omitempty"`
	PendingSubmittedAt *time.Time   `bun:"pending_submitted_at,nullzero" json:"pending_submitted_at,omitempty"`

	VerificationToken  string     `bun:"verification_token" json:"-"`
	VerificationExpiry *time.Time `bun:"verification_expiry,nullzero" json:"-"`
	ResetToken         string     `bun:"reset_token" json:"-"`
	ResetTokenExpiry   *time.Time `bun:"reset_token_expiry,nullzero" json:"-"`

	AverageRating float64 `bun:"average_rating" json:"average_rating,omitempty"`
	ReviewsCount  int     `bun:"reviews_count" json:"reviews_count,omitempty"`

	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RecordID returns the record's identifier.
func (u *User) RecordID() uuid.UUID { return u.ID }

// Approved reports whether an administrator has accepted the record's
// current published data.
func (u *User) Approved() bool { return u.IsApproved }

// EmailVerified reports whether the account's email has been verified.
func (u *User) EmailVerified() bool { return u.IsEmailVerified }

// PendingChanges reports whether an edit proposal awaits a decision.
func (u *User) PendingChanges() bool { return u.HasPendingChanges }

// Blocked reports whether an administrator has blocked the account.
func (u *User) Blocked() bool { return u.IsBlocked }

// Usable reports whether the account may log in and act. Either gate opens
// it: a verified email or an administrator approval. Blocked always closes it.
func (u *User) Usable() bool {
	return !u.IsBlocked && (u.IsEmailVerified || u.IsApproved)
}

// Published returns the live, administrator-accepted profile snapshot.
func (u *User) Published() ProfileData {
	return ProfileData{
		Name:         u.Name,
		FirstName:    u.FirstName,
		Surname:      u.Surname,
		OtherName:    u.OtherName,
		Email:        u.Email,
		Phone:        u.Phone,
		Whatsapp:     u.Whatsapp,
		Location:     u.Location,
		Region:       u.Region,
		ProfileImage: u.ProfileImage,
	}
}

// Pending returns the staged proposal, nil when none exists.
func (u *User) Pending() *ProfileData { return u.PendingProfile }

// Stage records an edit proposal without touching the published values.
func (u *User) Stage(original, pending ProfileData, at time.Time) {
	orig := original
	pend := pending
	u.OriginalProfile = &orig
	u.PendingProfile = &pend
	u.HasPendingChanges = true
	u.PendingSubmittedAt = &at
}

// Resolve applies or discards the staged proposal. Either way the record
// returns to the clean state.
func (u *User) Resolve(accept bool, at time.Time) {
	if accept && u.PendingProfile != nil {
		u.setPublished(*u.PendingProfile)
		u.LastApprovedAt = &at
	}
	u.PendingProfile = nil
	u.OriginalProfile = nil
	u.HasPendingChanges = false
	u.PendingSubmittedAt = nil
}

// VerificationState returns the outstanding verification token pair.
func (u *User) VerificationState() (string, *time.Time) {
	return u.VerificationToken, u.VerificationExpiry
}

// SetVerification replaces any outstanding verification token.
func (u *User) SetVerification(token string, expiry *time.Time) {
	u.VerificationToken = token
	u.VerificationExpiry = expiry
}

// MarkEmailVerified flips the verification flag and clears the token pair.
// Verification is terminal: there is no path back to unverified.
func (u *User) MarkEmailVerified() {
	u.IsEmailVerified = true
	u.VerificationToken = ""
	u.VerificationExpiry = nil
}

// Approve unconditionally approves the record, refreshing the timestamp.
func (u *User) Approve(at time.Time) {
	u.IsApproved = true
	u.LastApprovedAt = &at
}

// SetApproval is the administrator override. The approval timestamp only
// moves on the false to true transition.
func (u *User) SetApproval(approved bool, at time.Time) {
	if approved && !u.IsApproved {
		u.LastApprovedAt = &at
	}
	u.IsApproved = approved
}

func (u *User) setPublished(p ProfileData) {
	u.Name = p.Name
	u.FirstName = p.FirstName
	u.Surname = p.Surname
	u.OtherName = p.OtherName
	u.Email = p.Email
	u.Phone = p.Phone
	u.Whatsapp = p.Whatsapp
	u.Location = p.Location
	u.Region = p.Region
	u.ProfileImage = p.ProfileImage
}

// IsAdministrator checks both legacy admin markers. Records created through
// the admin panel set UserType, records promoted in place set Role; either
// one grants admin access.
func (u *User) IsAdministrator() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperadmin || u.UserType == TypeAdmin
}

// SafeCopy returns a copy with credential material blanked, for responses.
func (u *User) SafeCopy() *User {
	out := *u
	out.PasswordHash = ""
	out.VerificationToken = ""
	out.VerificationExpiry = nil
	out.ResetToken = ""
	out.ResetTokenExpiry = nil
	return &out
}
