package marketplace

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TaskStatus is the lifecycle state of a posted task.
type TaskStatus = string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusAssigned  TaskStatus = "assigned"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is a job posting. Client posts it, a worker may be assigned, and only
// completed tasks unlock reviews between the two parties.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:tsk"`

	ID          uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ClientID    uuid.UUID  `bun:"client_id,notnull,type:uuid" json:"client_id,omitempty"`
	WorkerID    *uuid.UUID `bun:"worker_id,nullzero,type:uuid" json:"worker_id,omitempty"`
	Title       string     `bun:"title,notnull" json:"title,omitempty"`
	Description string     `bun:"description" json:"description,omitempty"`
	Category    string     `bun:"category" json:"category,omitempty"`
	Location    string     `bun:"location" json:"location,omitempty"`
	Budget      string     `bun:"budget" json:"budget,omitempty"`
	Status      TaskStatus `bun:"status,notnull,default:'open'" json:"status,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Review links a client's rating of a worker to the completed task that
// allowed it. One review per task.
type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:rvw"`

	ID       uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	WorkerID uuid.UUID `bun:"worker_id,notnull,type:uuid" json:"worker_id,omitempty"`
	ClientID uuid.UUID `bun:"client_id,notnull,type:uuid" json:"client_id,omitempty"`
	TaskID   uuid.UUID `bun:"task_id,notnull,unique,type:uuid" json:"task_id,omitempty"`
	Rating   int       `bun:"rating,notnull" json:"rating"`
	Comment  string    `bun:"comment" json:"comment,omitempty"`

	Client *User `bun:"rel:belongs-to,join:client_id=id" json:"client,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SavedTask is a user's bookmark for a task. Unique per (user, task).
type SavedTask struct {
	bun.BaseModel `bun:"table:saved_tasks,alias:stk"`

	ID     uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TaskID uuid.UUID `bun:"task_id,notnull,type:uuid" json:"task_id,omitempty"`

	Task *Task `bun:"rel:belongs-to,join:task_id=id" json:"task,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// SavedProvider is a user's bookmark for a provider. Unique per (user, provider).
type SavedProvider struct {
	bun.BaseModel `bun:"table:saved_providers,alias:spr"`

	ID         uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID     uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ProviderID uuid.UUID `bun:"provider_id,notnull,type:uuid" json:"provider_id,omitempty"`

	Provider *Provider `bun:"rel:belongs-to,join:provider_id=id" json:"provider,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// FeaturedProviderTTL is how long a featured entry stays live by default.
const FeaturedProviderTTL = 30 * 24 * time.Hour

// FeaturedProvider is a curated homepage entry pointing at a provider, with
// denormalized display fields so the public list needs no joins.
type FeaturedProvider struct {
	bun.BaseModel `bun:"table:featured_providers,alias:ftp"`

	ID         uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ProviderID uuid.UUID `bun:"provider_id,notnull,type:uuid" json:"provider_id,omitempty"`
	Name       string    `bun:"name,notnull" json:"name,omitempty"`
	Category   string    `bun:"category,default:'General'" json:"category,omitempty"`
	Icon       string    `bun:"icon" json:"icon,omitempty"`
	IsActive   bool      `bun:"is_active,default:true" json:"is_active"`
	Order      int       `bun:"sort_order" json:"order"`
	ExpiresAt  time.Time `bun:"expires_at,notnull" json:"expires_at"`

	ProviderName     string  `bun:"provider_name" json:"provider_name,omitempty"`
	ProviderLocation string  `bun:"provider_location" json:"provider_location,omitempty"`
	ProviderRating   float64 `bun:"provider_rating" json:"provider_rating,omitempty"`
	ProviderRate     string  `bun:"provider_rate" json:"provider_rate,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Live reports whether the entry should appear in the public list.
func (f *FeaturedProvider) Live(now time.Time) bool {
	return f.IsActive && now.Before(f.ExpiresAt)
}
