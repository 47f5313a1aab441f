package marketplace

import (
	"mime/multipart"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ProvidersController serves the provider directory and the provider's own
// listing. Listing edits stage a pending change, registration is once per
// account.
type ProvidersController struct {
	Logger  Logger
	Repo    RepositoryManager
	Engine  *Engine[ProviderProfile, *Provider]
	Uploads *UploadStore
}

// RegisterPublicRoutes mounts the endpoints that need no authentication.
func (p *ProvidersController) RegisterPublicRoutes(router fiber.Router) {
	router.Get("/", p.List)
	router.Get("/search", p.Search)
	router.Get("/featured", p.Featured)
	router.Get("/:id", p.Show)
}

// RegisterPrivateRoutes mounts the endpoints behind RequireAuth.
func (p *ProvidersController) RegisterPrivateRoutes(router fiber.Router) {
	router.Post("/register", p.Register)
	router.Get("/check", p.Check)
	router.Get("/me", p.Mine)
	router.Put("/me", p.Update)
	router.Delete("/me/sample-work", p.DeleteSampleWork)
}

type ProviderRegisterPayload struct {
	Fname        string   `json:"fname" form:"fname"`
	Sname        string   `json:"sname" form:"sname"`
	Oname        string   `json:"oname" form:"oname"`
	City         string   `json:"city" form:"city"`
	Region       string   `json:"region" form:"region"`
	Category     []string `json:"category" form:"category"`
	Bio          string   `json:"bio" form:"bio"`
	Skills       []string `json:"skills" form:"skills"`
	Experience   string   `json:"experience" form:"experience"`
	HourlyRate   string   `json:"hourly_rate" form:"hourly_rate"`
	Availability string   `json:"availability" form:"availability"`
	Phone        string   `json:"phone" form:"phone"`
	Whatsapp     string   `json:"whatsapp" form:"whatsapp"`
	Email        string   `json:"email" form:"email"`
}

func (r ProviderRegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Fname, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Sname, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Category, validation.Required),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber(DefaultPhoneRegion))),
		validation.Field(&r.Whatsapp, validation.By(ValidatePhoneNumber(DefaultPhoneRegion))),
		validation.Field(&r.Email, is.Email),
	)
}

// Register creates the caller's provider listing. New listings start
// unapproved and stay out of the public directory until an administrator
// approves them.
func (p *ProvidersController) Register(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, p.Logger, ErrNoToken)
	}

	payload := new(ProviderRegisterPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, p.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	provider := &Provider{
		UserID:       principal.ID(),
		FirstName:    payload.Fname,
		Surname:      payload.Sname,
		OtherName:    payload.Oname,
		City:         payload.City,
		Region:       payload.Region,
		Category:     payload.Category,
		Bio:          payload.Bio,
		Skills:       payload.Skills,
		Experience:   payload.Experience,
		HourlyRate:   payload.HourlyRate,
		Availability: payload.Availability,
		Phone:        payload.Phone,
		Whatsapp:     payload.Whatsapp,
		Email:        payload.Email,
	}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		if files := form.File["profile_pic"]; len(files) > 0 {
			path, err := p.Uploads.Save(files[0], "providers", MaxAvatarUploadSize)
			if err != nil {
				return WriteError(c, p.Logger, err)
			}
			provider.ProfilePic = path
		}
		samples, err := p.saveSamples(form.File["sample_work"], nil)
		if err != nil {
			return WriteError(c, p.Logger, err)
		}
		provider.SampleWork = samples
	}

	created, err := p.Repo.Providers().RegisterOnce(c.UserContext(), provider)
	if err != nil {
		return WriteError(c, p.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Your provider profile has been submitted and is pending approval.",
		"provider": created,
	})
}

func (p *ProvidersController) Check(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, p.Logger, ErrNoToken)
	}

	provider, err := p.Repo.Providers().GetByUserID(c.UserContext(), principal.ID())
	if err != nil {
		return c.JSON(fiber.Map{"registered": false})
	}

	return c.JSON(fiber.Map{
		"registered":  true,
		"is_approved": provider.IsApproved,
	})
}

func (p *ProvidersController) Mine(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, p.Logger, ErrNoToken)
	}

	provider, err := p.Repo.Providers().GetByUserID(c.UserContext(), principal.ID())
	if err != nil {
		return WriteError(c, p.Logger, err)
	}

	return c.JSON(fiber.Map{"provider": provider})
}

type ProviderUpdatePayload struct {
	Fname        *string  `json:"fname"`
	Sname        *string  `json:"sname"`
	Oname        *string  `json:"oname"`
	City         *string  `json:"city"`
	Region       *string  `json:"region"`
	Category     []string `json:"category"`
	Bio          *string  `json:"bio"`
	Skills       []string `json:"skills"`
	Experience   *string  `json:"experience"`
	HourlyRate   *string  `json:"hourly_rate"`
	Availability *string  `json:"availability"`
	Phone        *string  `json:"phone"`
	Whatsapp     *string  `json:"whatsapp"`
	Email        *string  `json:"email"`
}

func (r ProviderUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Fname, validation.Length(1, 200)),
		validation.Field(&r.Sname, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber(DefaultPhoneRegion))),
		validation.Field(&r.Whatsapp, validation.By(ValidatePhoneNumber(DefaultPhoneRegion))),
	)
}

func (r ProviderUpdatePayload) toPatch() ProviderPatch {
	return ProviderPatch{
		FirstName:    r.Fname,
		Surname:      r.Sname,
		OtherName:    r.Oname,
		City:         r.City,
		Region:       r.Region,
		Category:     r.Category,
		Bio:          r.Bio,
		Skills:       r.Skills,
		Experience:   r.Experience,
		HourlyRate:   r.HourlyRate,
		Availability: r.Availability,
		Phone:        r.Phone,
		Whatsapp:     r.Whatsapp,
		Email:        r.Email,
	}
}

// Update stages the caller's listing edits for moderation.
func (p *ProvidersController) Update(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, p.Logger, ErrNoToken)
	}

	provider, err := p.Repo.Providers().GetByUserID(c.UserContext(), principal.ID())
	if err != nil {
		return WriteError(c, p.Logger, err)
	}

	payload := new(ProviderUpdatePayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, p.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	patch := payload.toPatch()

	if form, err := c.MultipartForm(); err == nil && form != nil {
		if files := form.File["profile_pic"]; len(files) > 0 {
			path, err := p.Uploads.Save(files[0], "providers", MaxAvatarUploadSize)
			if err != nil {
				return WriteError(c, p.Logger, err)
			}
			patch.ProfilePic = &path
		}
		samples, err := p.saveSamples(form.File["sample_work"], provider.SampleWork)
		if err != nil {
			return WriteError(c, p.Logger, err)
		}
		if len(samples) > 0 {
			patch.SampleWork = samples
		}
	}

	actor := ActorRef{ID: principal.ID().String(), Type: "user"}
	updated, err := p.Engine.StageEdit(c.UserContext(), actor, provider.ID, patch)
	if err != nil {
		return WriteError(c, p.Logger, err)
	}

	return c.JSON(fiber.Map{
		"message":  "Your changes have been submitted for review.",
		"provider": updated,
	})
}

type DeleteSampleWorkPayload struct {
	Path string `json:"path" query:"path"`
}

// DeleteSampleWork removes a sample image from the published listing and
// deletes the file. Sample removal is immediate, it does not go through
// moderation.
func (p *ProvidersController) DeleteSampleWork(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, p.Logger, ErrNoToken)
	}

	payload := new(DeleteSampleWorkPayload)
	if err := c.QueryParser(payload); err != nil || payload.Path == "" {
		if err := c.BodyParser(payload); err != nil || payload.Path == "" {
			return WriteValidationError(c, validation.Errors{"path": validation.ErrRequired})
		}
	}

	provider, err := p.Repo.Providers().GetByUserID(c.UserContext(), principal.ID())
	if err != nil {
		return WriteError(c, p.Logger, err)
	}

	target := NormalizeFilePath(payload.Path)
	kept := make([]string, 0, len(provider.SampleWork))
	found := false
	for _, s := range provider.SampleWork {
		if NormalizeFilePath(s) == target {
			found = true
			continue
		}
		kept = append(kept, s)
	}

	if !found {
		return WriteError(c, p.Logger, ErrIdentityNotFound)
	}

	if _, err := p.Repo.Providers().SaveSampleWork(c.UserContext(), provider.ID, kept); err != nil {
		return WriteError(c, p.Logger, err)
	}

	p.Uploads.Remove(target)

	return c.JSON(fiber.Map{
		"message":     "Sample removed",
		"sample_work": kept,
	})
}

func (p *ProvidersController) List(c *fiber.Ctx) error {
	records, err := p.Repo.Providers().ListNewest(c.UserContext())
	if err != nil {
		return WriteError(c, p.Logger, err)
	}

	return c.JSON(fiber.Map{"providers": records})
}

func (p *ProvidersController) Search(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return p.List(c)
	}

	records, err := p.Repo.Providers().Search(c.UserContext(), query)
	if err != nil {
		return WriteError(c, p.Logger, err)
	}

	return c.JSON(fiber.Map{"providers": records})
}

func (p *ProvidersController) Featured(c *fiber.Ctx) error {
	records, err := p.Repo.FeaturedProviders().ListActive(c.UserContext(), time.Now())
	if err != nil {
		return WriteError(c, p.Logger, err)
	}

	return c.JSON(fiber.Map{"featured": records})
}

func (p *ProvidersController) Show(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, p.Logger, ErrIdentityNotFound)
	}

	provider, err := p.Repo.Providers().GetByID(c.UserContext(), id.String())
	if err != nil {
		return WriteError(c, p.Logger, err)
	}

	// unapproved listings are only visible to their owner
	if !provider.IsApproved {
		principal := PrincipalFromFiber(c)
		if principal == nil || principal.ID() != provider.UserID {
			return WriteError(c, p.Logger, ErrIdentityNotFound)
		}
	}

	return c.JSON(fiber.Map{"provider": provider})
}

func (p *ProvidersController) saveSamples(files []*multipart.FileHeader, existing []string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	room := MaxSampleWork - len(existing)
	if room <= 0 {
		return nil, nil
	}
	if len(files) > room {
		files = files[:room]
	}

	out := make([]string, 0, len(files))
	for _, f := range files {
		path, err := p.Uploads.Save(f, "samples", MaxWorkSampleUploadSize)
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}

	return out, nil
}
