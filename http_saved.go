package marketplace

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SavedController serves the per-user saved task and saved provider lists.
// Saving is a toggle, a second call removes the entry.
type SavedController struct {
	Logger Logger
	Repo   RepositoryManager
}

func (s *SavedController) RegisterRoutes(router fiber.Router) {
	router.Get("/tasks", s.ListTasks)
	router.Post("/tasks/:id", s.ToggleTask)
	router.Delete("/tasks/:id", s.RemoveTask)
	router.Get("/providers", s.ListProviders)
	router.Post("/providers/:id", s.ToggleProvider)
	router.Delete("/providers/:id", s.RemoveProvider)
}

func (s *SavedController) ListTasks(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, s.Logger, ErrNoToken)
	}

	records, err := s.Repo.SavedTasks().ListByUser(c.UserContext(), principal.ID())
	if err != nil {
		return WriteError(c, s.Logger, err)
	}

	return c.JSON(fiber.Map{"saved_tasks": records})
}

func (s *SavedController) ToggleTask(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, s.Logger, ErrNoToken)
	}

	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, s.Logger, ErrIdentityNotFound)
	}

	// confirm the task exists before saving a dangling reference
	if _, err := s.Repo.Tasks().GetByID(c.UserContext(), taskID.String()); err != nil {
		return WriteError(c, s.Logger, err)
	}

	saved, err := s.Repo.SavedTasks().Toggle(c.UserContext(), principal.ID(), taskID)
	if err != nil {
		return WriteError(c, s.Logger, err)
	}

	return c.JSON(fiber.Map{"saved": saved})
}

func (s *SavedController) RemoveTask(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, s.Logger, ErrNoToken)
	}

	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, s.Logger, ErrIdentityNotFound)
	}

	if err := s.Repo.SavedTasks().RemoveForUser(c.UserContext(), principal.ID(), taskID); err != nil {
		return WriteError(c, s.Logger, err)
	}

	return c.JSON(fiber.Map{"message": "Removed"})
}

func (s *SavedController) ListProviders(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, s.Logger, ErrNoToken)
	}

	records, err := s.Repo.SavedProviders().ListByUser(c.UserContext(), principal.ID())
	if err != nil {
		return WriteError(c, s.Logger, err)
	}

	return c.JSON(fiber.Map{"saved_providers": records})
}

func (s *SavedController) ToggleProvider(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, s.Logger, ErrNoToken)
	}

	providerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, s.Logger, ErrIdentityNotFound)
	}

	if _, err := s.Repo.Providers().GetByID(c.UserContext(), providerID.String()); err != nil {
		return WriteError(c, s.Logger, err)
	}

	saved, err := s.Repo.SavedProviders().Toggle(c.UserContext(), principal.ID(), providerID)
	if err != nil {
		return WriteError(c, s.Logger, err)
	}

	return c.JSON(fiber.Map{"saved": saved})
}

func (s *SavedController) RemoveProvider(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, s.Logger, ErrNoToken)
	}

	providerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, s.Logger, ErrIdentityNotFound)
	}

	if err := s.Repo.SavedProviders().RemoveForUser(c.UserContext(), principal.ID(), providerID); err != nil {
		return WriteError(c, s.Logger, err)
	}

	return c.JSON(fiber.Map{"message": "Removed"})
}
