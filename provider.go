package marketplace

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaxSampleWork is the ceiling on sample work images per provider.
const MaxSampleWork = 10

// ProviderProfile is the moderated portion of a provider listing, in the same
// published/pending/original roles ProfileData plays for users.
type ProviderProfile struct {
	FirstName    string   `json:"fname"`
	Surname      string   `json:"sname"`
	OtherName    string   `json:"oname"`
	City         string   `json:"city"`
	Region       string   `json:"region"`
	Category     []string `json:"category"`
	Bio          string   `json:"bio"`
	Skills       []string `json:"skills"`
	Experience   string   `json:"experience"`
	HourlyRate   string   `json:"hourly_rate"`
	Availability string   `json:"availability"`
	Phone        string   `json:"phone"`
	Whatsapp     string   `json:"whatsapp"`
	Email        string   `json:"email"`
	ProfilePic   string   `json:"profile_pic"`
	SampleWork   []string `json:"sample_work"`
}

// FullName joins the name parts the way listings display them.
func (p ProviderProfile) FullName() string {
	name := p.FirstName + " " + p.Surname
	if p.OtherName != "" {
		name += " " + p.OtherName
	}
	return name
}

// ProviderPatch is a partial provider edit. Nil fields keep their current
// published value; SampleWork appends and truncates at MaxSampleWork.
type ProviderPatch struct {
	FirstName    *string  `json:"fname,omitempty"`
	Surname      *string  `json:"sname,omitempty"`
	OtherName    *string  `json:"oname,omitempty"`
	City         *string  `json:"city,omitempty"`
	Region       *string  `json:"region,omitempty"`
	Category     []string `json:"category,omitempty"`
	Bio          *string  `json:"bio,omitempty"`
	Skills       []string `json:"skills,omitempty"`
	Experience   *string  `json:"experience,omitempty"`
	HourlyRate   *string  `json:"hourly_rate,omitempty"`
	Availability *string  `json:"availability,omitempty"`
	Phone        *string  `json:"phone,omitempty"`
	Whatsapp     *string  `json:"whatsapp,omitempty"`
	Email        *string  `json:"email,omitempty"`
	ProfilePic   *string  `json:"profile_pic,omitempty"`
	SampleWork   []string `json:"sample_work,omitempty"`
}

// Apply overlays the patch on a copy of base.
func (p ProviderPatch) Apply(base ProviderProfile) ProviderProfile {
	out := base
	if p.FirstName != nil {
		out.FirstName = *p.FirstName
	}
	if p.Surname != nil {
		out.Surname = *p.Surname
	}
	if p.OtherName != nil {
		out.OtherName = *p.OtherName
	}
	if p.City != nil {
		out.City = *p.City
	}
	if p.Region != nil {
		out.Region = *p.Region
	}
	if p.Category != nil {
		out.Category = p.Category
	}
	if p.Bio != nil {
		out.Bio = *p.Bio
	}
	if p.Skills != nil {
		out.Skills = p.Skills
	}
	if p.Experience != nil {
		out.Experience = *p.Experience
	}
	if p.HourlyRate != nil {
		out.HourlyRate = *p.HourlyRate
	}
	if p.Availability != nil {
		out.Availability = *p.Availability
	}
	if p.Phone != nil {
		out.Phone = *p.Phone
	}
	if p.Whatsapp != nil {
		out.Whatsapp = *p.Whatsapp
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.SampleWork != nil {
		merged := append(append([]string{}, base.SampleWork...), p.SampleWork...)
		if len(merged) > MaxSampleWork {
			merged = merged[:MaxSampleWork]
		}
		out.SampleWork = merged
	}
	if p.ProfilePic != nil {
		out.ProfilePic = *p.ProfilePic
	}
	return out
}

// Provider is a worker's service listing. One per user.
type Provider struct {
	bun.BaseModel `bun:"table:providers,alias:prv"`

	ID     uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID uuid.UUID `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`

	FirstName    string   `bun:"fname,notnull" json:"fname,omitempty"`
	Surname      string   `bun:"sname,notnull" json:"sname,omitempty"`
	OtherName    string   `bun:"oname" json:"oname,omitempty"`
	FullName     string   `bun:"full_name" json:"full_name,omitempty"`
	City         string   `bun:"city" json:"city,omitempty"`
	Region       string   `bun:"region" json:"region,omitempty"`
	Category     []string `bun:"category,type:jsonb" json:"category,omitempty"`
	Bio          string   `bun:"bio" json:"bio,omitempty"`
	Skills       []string `bun:"skills,type:jsonb" json:"skills,omitempty"`
	Experience   string   `bun:"experience" json:"experience,omitempty"`
	HourlyRate   string   `bun:"hourly_rate" json:"hourly_rate,omitempty"`
	Availability string   `bun:"availability" json:"availability,omitempty"`
	Phone        string   `bun:"phone" json:"phone,omitempty"`
	Whatsapp     string   `bun:"whatsapp" json:"whatsapp,omitempty"`
	Email        string   `bun:"email" json:"email,omitempty"`
	ProfilePic   string   `bun:"profile_pic" json:"profile_pic,omitempty"`
	SampleWork   []string `bun:"sample_work,type:jsonb" json:"sample_work,omitempty"`

	IsApproved bool `bun:"is_approved" json:"is_approved"`
	IsBlocked  bool `bun:"is_blocked" json:"is_blocked"`

	HasPendingChanges  bool             `bun:"has_pending_changes" json:"has_pending_changes"`
	PendingProfile     *ProviderProfile `bun:"pending_profile,type:jsonb" json:"pending_profile,omitempty"`
	OriginalProfile    *ProviderProfile `bun:"original_profile,type:jsonb" json:"original_profile,omitempty"`
	LastApprovedAt     *time.Time       `bun:"last_approved_at,nullzero" json:"last_approved_at,omitempty"`
	PendingSubmittedAt *time.Time       `bun:"pending_submitted_at,nullzero" json:"pending_submitted_at,omitempty"`

	AverageRating float64 `bun:"average_rating" json:"average_rating"`
	ReviewsCount  int     `bun:"reviews_count" json:"reviews_count"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RecordID returns the record's identifier.
func (p *Provider) RecordID() uuid.UUID { return p.ID }

// Approved reports whether an administrator has accepted the listing.
func (p *Provider) Approved() bool { return p.IsApproved }

// Blocked reports whether the listing has been blocked.
func (p *Provider) Blocked() bool { return p.IsBlocked }

// Usable reports whether the listing may appear and take work. Providers have
// no verification flow, so approval is the only gate.
func (p *Provider) Usable() bool { return !p.IsBlocked && p.IsApproved }

// PendingChanges reports whether an edit proposal awaits a decision.
func (p *Provider) PendingChanges() bool { return p.HasPendingChanges }

// Published returns the live listing snapshot.
func (p *Provider) Published() ProviderProfile {
	return ProviderProfile{
		FirstName:    p.FirstName,
		Surname:      p.Surname,
		OtherName:    p.OtherName,
		City:         p.City,
		Region:       p.Region,
		Category:     p.Category,
		Bio:          p.Bio,
		Skills:       p.Skills,
		Experience:   p.Experience,
		HourlyRate:   p.HourlyRate,
		Availability: p.Availability,
		Phone:        p.Phone,
		Whatsapp:     p.Whatsapp,
		Email:        p.Email,
		ProfilePic:   p.ProfilePic,
		SampleWork:   p.SampleWork,
	}
}

// Pending returns the staged proposal, nil when none exists.
func (p *Provider) Pending() *ProviderProfile { return p.PendingProfile }

// Stage records an edit proposal without touching the published values.
func (p *Provider) Stage(original, pending ProviderProfile, at time.Time) {
	orig := original
	pend := pending
	p.OriginalProfile = &orig
	p.PendingProfile = &pend
	p.HasPendingChanges = true
	p.PendingSubmittedAt = &at
}

// Resolve applies or discards the staged proposal.
func (p *Provider) Resolve(accept bool, at time.Time) {
	if accept && p.PendingProfile != nil {
		p.setPublished(*p.PendingProfile)
		p.LastApprovedAt = &at
	}
	p.PendingProfile = nil
	p.OriginalProfile = nil
	p.HasPendingChanges = false
	p.PendingSubmittedAt = nil
}

// Approve unconditionally approves the listing, refreshing the timestamp.
func (p *Provider) Approve(at time.Time) {
	p.IsApproved = true
	p.LastApprovedAt = &at
}

// SetApproval is the administrator override. The approval timestamp only
// moves on the false to true transition.
func (p *Provider) SetApproval(approved bool, at time.Time) {
	if approved && !p.IsApproved {
		p.LastApprovedAt = &at
	}
	p.IsApproved = approved
}

func (p *Provider) setPublished(prof ProviderProfile) {
	p.FirstName = prof.FirstName
	p.Surname = prof.Surname
	p.OtherName = prof.OtherName
	p.FullName = prof.FullName()
	p.City = prof.City
	p.Region = prof.Region
	p.Category = prof.Category
	p.Bio = prof.Bio
	p.Skills = prof.Skills
	p.Experience = prof.Experience
	p.HourlyRate = prof.HourlyRate
	p.Availability = prof.Availability
	p.Phone = prof.Phone
	p.Whatsapp = prof.Whatsapp
	p.Email = prof.Email
	p.ProfilePic = prof.ProfilePic
	p.SampleWork = prof.SampleWork
}

// ApplyRating recomputes the denormalized rating fields.
func (p *Provider) ApplyRating(average float64, count int) {
	p.AverageRating = average
	p.ReviewsCount = count
}
