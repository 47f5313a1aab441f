package marketplace

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// TasksController serves task posting and browsing. Clients post tasks,
// workers browse the open ones.
type TasksController struct {
	Logger Logger
	Repo   RepositoryManager
}

func (t *TasksController) RegisterRoutes(router fiber.Router) {
	router.Post("/", t.Create)
	router.Get("/", t.Browse)
	router.Get("/mine", t.Mine)
	router.Put("/:id", t.Update)
	router.Delete("/:id", t.Delete)
}

type TaskPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Budget      string `json:"budget"`
}

func (r TaskPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(3, 200)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
	)
}

func (t *TasksController) Create(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if err := requireUsable(principal); err != nil {
		return WriteError(c, t.Logger, err)
	}

	payload := new(TaskPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, t.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	task := &Task{
		ID:          uuid.New(),
		ClientID:    principal.ID(),
		Title:       payload.Title,
		Description: payload.Description,
		Category:    payload.Category,
		Location:    payload.Location,
		Budget:      payload.Budget,
		Status:      TaskStatusOpen,
	}

	created, err := t.Repo.Tasks().Create(c.UserContext(), task)
	if err != nil {
		return WriteError(c, t.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"task": created})
}

// Browse lists open tasks for workers.
func (t *TasksController) Browse(c *fiber.Ctx) error {
	records, err := t.Repo.Tasks().ListAll(c.UserContext())
	if err != nil {
		return WriteError(c, t.Logger, err)
	}

	open := make([]*Task, 0, len(records))
	for _, task := range records {
		if task.Status == TaskStatusOpen {
			open = append(open, task)
		}
	}

	return c.JSON(fiber.Map{"tasks": open})
}

func (t *TasksController) Mine(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, t.Logger, ErrNoToken)
	}

	records, err := t.Repo.Tasks().ListByClient(c.UserContext(), principal.ID())
	if err != nil {
		return WriteError(c, t.Logger, err)
	}

	return c.JSON(fiber.Map{"tasks": records})
}

type TaskUpdatePayload struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Location    *string `json:"location"`
	Budget      *string `json:"budget"`
	Status      *string `json:"status"`
	WorkerID    *string `json:"worker_id"`
}

func (r TaskUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Length(3, 200)),
		validation.Field(&r.Status, validation.In(
			string(TaskStatusOpen),
			string(TaskStatusAssigned),
			string(TaskStatusCompleted),
			string(TaskStatusCancelled),
		)),
	)
}

func (t *TasksController) Update(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, t.Logger, ErrNoToken)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, t.Logger, ErrIdentityNotFound)
	}

	task, err := t.Repo.Tasks().GetByID(c.UserContext(), id.String())
	if err != nil {
		return WriteError(c, t.Logger, err)
	}

	if task.ClientID != principal.ID() {
		return WriteError(c, t.Logger, ErrForbidden)
	}

	payload := new(TaskUpdatePayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, t.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	if payload.Title != nil {
		task.Title = *payload.Title
	}
	if payload.Description != nil {
		task.Description = *payload.Description
	}
	if payload.Category != nil {
		task.Category = *payload.Category
	}
	if payload.Location != nil {
		task.Location = *payload.Location
	}
	if payload.Budget != nil {
		task.Budget = *payload.Budget
	}
	if payload.Status != nil {
		task.Status = TaskStatus(*payload.Status)
	}
	if payload.WorkerID != nil {
		if *payload.WorkerID == "" {
			task.WorkerID = nil
		} else {
			workerID, err := uuid.Parse(*payload.WorkerID)
			if err != nil {
				return WriteValidationError(c, validation.Errors{"worker_id": err})
			}
			task.WorkerID = &workerID
		}
	}

	updated, err := t.Repo.Tasks().Update(c.UserContext(), task)
	if err != nil {
		return WriteError(c, t.Logger, err)
	}

	return c.JSON(fiber.Map{"task": updated})
}

func (t *TasksController) Delete(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if principal == nil {
		return WriteError(c, t.Logger, ErrNoToken)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, t.Logger, ErrIdentityNotFound)
	}

	task, err := t.Repo.Tasks().GetByID(c.UserContext(), id.String())
	if err != nil {
		return WriteError(c, t.Logger, err)
	}

	if task.ClientID != principal.ID() {
		return WriteError(c, t.Logger, ErrForbidden)
	}

	if _, err := t.Repo.Tasks().DeleteByIDs(c.UserContext(), []uuid.UUID{task.ID}); err != nil {
		return WriteError(c, t.Logger, err)
	}

	return c.JSON(fiber.Map{"message": "Task deleted"})
}
