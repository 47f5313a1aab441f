package marketplace

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AdminController serves moderation and administration: account approval,
// pending change review, blocking, task cleanup and the featured carousel.
type AdminController struct {
	Logger         Logger
	Repo           RepositoryManager
	UserEngine     *VerifyEngine[ProfileData, *User]
	ProviderEngine *Engine[ProviderProfile, *Provider]
}

func (a *AdminController) RegisterRoutes(router fiber.Router) {
	router.Get("/users", a.ListUsers)
	router.Post("/users", a.CreateUser)
	router.Put("/users/:id/block", a.SetUserBlocked)
	router.Put("/users/:id/approval", a.SetUserApproval)
	router.Delete("/users/:id", a.DeleteUser)

	router.Get("/moderation/users", a.ListPendingUsers)
	router.Post("/moderation/users/:id/decision", a.DecideUserChange)
	router.Get("/moderation/providers", a.ListPendingProviders)
	router.Post("/moderation/providers/:id/decision", a.DecideProviderChange)

	router.Get("/providers", a.ListProviders)
	router.Put("/providers/:id/approval", a.SetProviderApproval)
	router.Post("/providers/bulk-approve", a.BulkApproveProviders)

	router.Get("/tasks", a.ListTasks)
	router.Delete("/tasks/:id", a.DeleteTask)
	router.Post("/tasks/bulk-delete", a.BulkDeleteTasks)

	router.Get("/featured", a.ListFeatured)
	router.Post("/featured", a.CreateFeatured)
	router.Put("/featured/:id", a.UpdateFeatured)
	router.Delete("/featured/:id", a.DeleteFeatured)
}

func (a *AdminController) actor(c *fiber.Ctx) ActorRef {
	if principal := PrincipalFromFiber(c); principal != nil {
		return ActorRef{ID: principal.ID().String(), Type: "admin"}
	}
	return ActorRef{Type: "admin"}
}

func (a *AdminController) ListUsers(c *fiber.Ctx) error {
	records, err := a.Repo.Users().ListAll(c.UserContext())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	out := make([]*User, 0, len(records))
	for _, u := range records {
		out = append(out, u.SafeCopy())
	}

	return c.JSON(fiber.Map{"users": out})
}

type AdminCreateUserPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	UserType string `json:"user_type"`
}

func (p AdminCreateUserPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(&p.Role, validation.In(
			"", string(RoleUser), string(RoleAdmin), string(RoleSuperadmin),
		)),
	)
}

// CreateUser provisions an account directly, skipping the email round trip.
// This is how additional administrators are seeded.
func (a *AdminController) CreateUser(c *fiber.Ctx) error {
	payload := new(AdminCreateUserPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	user := &User{
		Name:            getDisplayName(payload.Name, "", "", payload.Email),
		Email:           payload.Email,
		PasswordHash:    hash,
		IsEmailVerified: true,
		IsApproved:      true,
	}
	if payload.Role != "" {
		user.Role = UserRole(payload.Role)
	}
	if t := UserType(payload.UserType); t.IsValid() {
		user.UserType = t
	}
	if user.Role.IsAtLeast(RoleAdmin) {
		user.UserType = TypeAdmin
	}

	created, err := a.Repo.Users().Create(c.UserContext(), user)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": created.SafeCopy()})
}

type BlockPayload struct {
	Blocked bool `json:"blocked"`
}

func (a *AdminController) SetUserBlocked(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	payload := new(BlockPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	user, err := a.Repo.Users().SetBlocked(c.UserContext(), id, payload.Blocked)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"user": user.SafeCopy()})
}

type ApprovalPayload struct {
	Approved bool `json:"approved"`
}

func (a *AdminController) SetUserApproval(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	payload := new(ApprovalPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	user, err := a.UserEngine.AdminSetApproval(c.UserContext(), a.actor(c), id, payload.Approved)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"user": user.SafeCopy()})
}

func (a *AdminController) DeleteUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	user, err := a.Repo.Users().GetByIdentifier(c.UserContext(), id.String())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	// administrators cannot remove each other through the API
	if user.IsAdministrator() {
		return WriteError(c, a.Logger, ErrForbidden)
	}

	if err := a.Repo.Users().DeleteByID(c.UserContext(), id); err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"message": "User deleted"})
}

func (a *AdminController) ListPendingUsers(c *fiber.Ctx) error {
	records, err := a.Repo.Users().ListPending(c.UserContext())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	out := make([]*User, 0, len(records))
	for _, u := range records {
		out = append(out, u.SafeCopy())
	}

	return c.JSON(fiber.Map{"pending": out})
}

type DecisionPayload struct {
	Accept bool `json:"accept"`
}

func (a *AdminController) DecideUserChange(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	payload := new(DecisionPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	user, err := a.UserEngine.DecidePendingChange(c.UserContext(), a.actor(c), id, payload.Accept)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"user": user.SafeCopy()})
}

func (a *AdminController) ListPendingProviders(c *fiber.Ctx) error {
	records, err := a.Repo.Providers().ListPending(c.UserContext())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"pending": records})
}

func (a *AdminController) DecideProviderChange(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	payload := new(DecisionPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	provider, err := a.ProviderEngine.DecidePendingChange(c.UserContext(), a.actor(c), id, payload.Accept)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"provider": provider})
}

func (a *AdminController) ListProviders(c *fiber.Ctx) error {
	records, err := a.Repo.Providers().ListNewestAll(c.UserContext())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"providers": records})
}

func (a *AdminController) SetProviderApproval(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	payload := new(ApprovalPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	provider, err := a.ProviderEngine.AdminSetApproval(c.UserContext(), a.actor(c), id, payload.Approved)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"provider": provider})
}

type BulkApprovePayload struct {
	IDs []string `json:"ids"`
}

func (p BulkApprovePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.IDs, validation.Required),
	)
}

func (a *AdminController) BulkApproveProviders(c *fiber.Ctx) error {
	payload := new(BulkApprovePayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	ids := make([]uuid.UUID, 0, len(payload.IDs))
	for _, raw := range payload.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return WriteValidationError(c, validation.Errors{"ids": err})
		}
		ids = append(ids, id)
	}

	if err := a.Repo.Providers().BulkApprove(c.UserContext(), ids); err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"message": "Providers approved", "count": len(ids)})
}

func (a *AdminController) ListTasks(c *fiber.Ctx) error {
	records, err := a.Repo.Tasks().ListAll(c.UserContext())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"tasks": records})
}

func (a *AdminController) DeleteTask(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	count, err := a.Repo.Tasks().DeleteByIDs(c.UserContext(), []uuid.UUID{id})
	if err != nil {
		return WriteError(c, a.Logger, err)
	}
	if count == 0 {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	return c.JSON(fiber.Map{"message": "Task deleted"})
}

type BulkDeletePayload struct {
	TaskIDs []string `json:"taskIds"`
}

func (a *AdminController) BulkDeleteTasks(c *fiber.Ctx) error {
	payload := new(BulkDeletePayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	ids := make([]uuid.UUID, 0, len(payload.TaskIDs))
	for _, raw := range payload.TaskIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return WriteValidationError(c, validation.Errors{"taskIds": err})
		}
		ids = append(ids, id)
	}

	count, err := a.Repo.Tasks().DeleteByIDs(c.UserContext(), ids)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"message": "Tasks deleted", "count": count})
}

func (a *AdminController) ListFeatured(c *fiber.Ctx) error {
	records, err := a.Repo.FeaturedProviders().ListAll(c.UserContext())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"featured": records})
}

type FeaturedPayload struct {
	ProviderID string `json:"provider_id"`
	Category   string `json:"category"`
	Icon       string `json:"icon"`
	Order      int    `json:"order"`
}

func (p FeaturedPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ProviderID, validation.Required, is.UUID),
	)
}

// CreateFeatured promotes a provider into the carousel for the standard
// featured window, denormalizing the fields the carousel renders.
func (a *AdminController) CreateFeatured(c *fiber.Ctx) error {
	payload := new(FeaturedPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	providerID, err := uuid.Parse(payload.ProviderID)
	if err != nil {
		return WriteValidationError(c, validation.Errors{"provider_id": err})
	}

	provider, err := a.Repo.Providers().GetByID(c.UserContext(), providerID.String())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	if !provider.IsApproved {
		return WriteError(c, a.Logger, ErrNotApproved)
	}

	category := payload.Category
	if category == "" && len(provider.Category) > 0 {
		category = provider.Category[0]
	}

	featured := &FeaturedProvider{
		ID:               uuid.New(),
		ProviderID:       provider.ID,
		Name:             provider.FullName,
		Category:         category,
		Icon:             payload.Icon,
		IsActive:         true,
		Order:            payload.Order,
		ExpiresAt:        time.Now().Add(FeaturedProviderTTL),
		ProviderName:     provider.FullName,
		ProviderLocation: provider.City,
		ProviderRating:   provider.AverageRating,
		ProviderRate:     provider.HourlyRate,
	}

	created, err := a.Repo.FeaturedProviders().Create(c.UserContext(), featured)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"featured": created})
}

type FeaturedUpdatePayload struct {
	Category *string `json:"category"`
	Icon     *string `json:"icon"`
	IsActive *bool   `json:"is_active"`
	Order    *int    `json:"order"`
	Extend   bool    `json:"extend"`
}

func (a *AdminController) UpdateFeatured(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	featured, err := a.Repo.FeaturedProviders().GetByID(c.UserContext(), id.String())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	payload := new(FeaturedUpdatePayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if payload.Category != nil {
		featured.Category = *payload.Category
	}
	if payload.Icon != nil {
		featured.Icon = *payload.Icon
	}
	if payload.IsActive != nil {
		featured.IsActive = *payload.IsActive
	}
	if payload.Order != nil {
		featured.Order = *payload.Order
	}
	if payload.Extend {
		featured.ExpiresAt = time.Now().Add(FeaturedProviderTTL)
	}

	updated, err := a.Repo.FeaturedProviders().Update(c.UserContext(), featured)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"featured": updated})
}

func (a *AdminController) DeleteFeatured(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, a.Logger, ErrIdentityNotFound)
	}

	if err := a.Repo.FeaturedProviders().DeleteByID(c.UserContext(), id); err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{"message": "Featured entry removed"})
}
