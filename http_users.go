package marketplace

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
)

// UsersController serves the account profile endpoints. Profile edits do not
// apply directly, they stage a pending change for moderation.
type UsersController struct {
	Logger  Logger
	Repo    RepositoryManager
	Engine  *VerifyEngine[ProfileData, *User]
	Uploads *UploadStore
}

func (u *UsersController) RegisterRoutes(router fiber.Router) {
	router.Get("/me", u.Me)
	router.Put("/me", u.UpdateProfile)
	router.Get("/me/stats", u.Stats)
}

func (u *UsersController) Me(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, u.Logger, ErrNoToken)
	}

	return c.JSON(fiber.Map{
		"user": principal.User.SafeCopy(),
	})
}

type UpdateProfilePayload struct {
	Name         *string `json:"name"`
	Fname        *string `json:"fname"`
	Sname        *string `json:"sname"`
	Oname        *string `json:"oname"`
	Phone        *string `json:"phone"`
	Whatsapp     *string `json:"whatsapp"`
	Location     *string `json:"location"`
	Region       *string `json:"region"`
	ProfileImage *string `json:"profile_image"`
}

func (r UpdateProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber(DefaultPhoneRegion))),
		validation.Field(&r.Whatsapp, validation.By(ValidatePhoneNumber(DefaultPhoneRegion))),
	)
}

func (r UpdateProfilePayload) toPatch() ProfilePatch {
	return ProfilePatch{
		Name:         r.Name,
		FirstName:    r.Fname,
		Surname:      r.Sname,
		OtherName:    r.Oname,
		Phone:        r.Phone,
		Whatsapp:     r.Whatsapp,
		Location:     r.Location,
		Region:       r.Region,
		ProfileImage: r.ProfileImage,
	}
}

// UpdateProfile stages the submitted fields for review. The published profile
// stays live until an administrator accepts the change.
func (u *UsersController) UpdateProfile(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, u.Logger, ErrNoToken)
	}

	payload := new(UpdateProfilePayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, u.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		if files := form.File["profile_image"]; len(files) > 0 {
			path, err := u.Uploads.Save(files[0], "avatars", MaxAvatarUploadSize)
			if err != nil {
				return WriteError(c, u.Logger, err)
			}
			payload.ProfileImage = &path
		}
	}

	actor := ActorRef{ID: principal.ID().String(), Type: "user"}
	updated, err := u.Engine.StageEdit(c.UserContext(), actor, principal.ID(), payload.toPatch())
	if err != nil {
		return WriteError(c, u.Logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Your changes have been submitted for review.",
		"user":    updated.SafeCopy(),
	})
}

func (u *UsersController) Stats(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, u.Logger, ErrNoToken)
	}

	ctx := c.UserContext()

	tasks, err := u.Repo.Tasks().ListByClient(ctx, principal.ID())
	if err != nil {
		return WriteError(c, u.Logger, err)
	}

	savedTasks, err := u.Repo.SavedTasks().CountByUser(ctx, principal.ID())
	if err != nil {
		return WriteError(c, u.Logger, err)
	}

	open := 0
	completed := 0
	for _, t := range tasks {
		switch t.Status {
		case TaskStatusOpen:
			open++
		case TaskStatusCompleted:
			completed++
		}
	}

	return c.JSON(fiber.Map{
		"tasks_posted":    len(tasks),
		"tasks_open":      open,
		"tasks_completed": completed,
		"saved_tasks":     savedTasks,
	})
}
