package marketplace

import (
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// ReviewsController serves worker reviews. A client may review a worker once
// per task, and only after that task completed between the two of them.
type ReviewsController struct {
	Logger Logger
	Repo   RepositoryManager
}

func (r *ReviewsController) RegisterPublicRoutes(router fiber.Router) {
	router.Get("/worker/:id", r.ListByWorker)
}

func (r *ReviewsController) RegisterPrivateRoutes(router fiber.Router) {
	router.Post("/", r.Create)
}

type ReviewPayload struct {
	WorkerID string `json:"worker_id"`
	TaskID   string `json:"task_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

func (p ReviewPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.WorkerID, validation.Required),
		validation.Field(&p.TaskID, validation.Required),
		validation.Field(&p.Rating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&p.Comment, validation.Length(0, 2000)),
	)
}

func (r *ReviewsController) Create(c *fiber.Ctx) error {
	principal := PrincipalFromFiber(c)
	if err := requireUsable(principal); err != nil {
		return WriteError(c, r.Logger, err)
	}

	payload := new(ReviewPayload)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, r.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	workerID, err := uuid.Parse(payload.WorkerID)
	if err != nil {
		return WriteValidationError(c, validation.Errors{"worker_id": err})
	}

	taskID, err := uuid.Parse(payload.TaskID)
	if err != nil {
		return WriteValidationError(c, validation.Errors{"task_id": err})
	}

	ctx := c.UserContext()

	// the review must hang off a completed task between these two accounts
	if _, err := r.Repo.Tasks().CompletedBetween(ctx, taskID, principal.ID(), workerID); err != nil {
		if repository.IsRecordNotFound(err) {
			return WriteError(c, r.Logger, ErrReviewNotAllowed)
		}
		return WriteError(c, r.Logger, err)
	}

	exists, err := r.Repo.Reviews().ExistsForTask(ctx, taskID)
	if err != nil {
		return WriteError(c, r.Logger, err)
	}
	if exists {
		return WriteError(c, r.Logger, ErrDuplicateReview)
	}

	review := &Review{
		ID:       uuid.New(),
		WorkerID: workerID,
		ClientID: principal.ID(),
		TaskID:   taskID,
		Rating:   payload.Rating,
		Comment:  payload.Comment,
	}

	created, err := r.Repo.Reviews().Create(ctx, review)
	if err != nil {
		return WriteError(c, r.Logger, err)
	}

	if err := r.recomputeRating(c, workerID); err != nil {
		r.Logger.Error("failed to refresh rating for worker %s: %v", workerID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"review": created})
}

// recomputeRating refreshes the denormalized averages on the worker's user
// record and, when one exists, their provider listing.
func (r *ReviewsController) recomputeRating(c *fiber.Ctx, workerID uuid.UUID) error {
	ctx := c.UserContext()

	average, count, err := r.Repo.Reviews().WorkerRating(ctx, workerID)
	if err != nil {
		return err
	}

	average = math.Round(average*100) / 100

	if _, err := r.Repo.Users().SaveRating(ctx, workerID, average, count); err != nil {
		return err
	}

	if provider, err := r.Repo.Providers().GetByUserID(ctx, workerID); err == nil {
		if _, err := r.Repo.Providers().SaveRating(ctx, provider.ID, average, count); err != nil {
			return err
		}
	}

	return nil
}

func (r *ReviewsController) ListByWorker(c *fiber.Ctx) error {
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return WriteError(c, r.Logger, ErrIdentityNotFound)
	}

	records, err := r.Repo.Reviews().ListByWorker(c.UserContext(), workerID)
	if err != nil {
		return WriteError(c, r.Logger, err)
	}

	// reviewers are exposed by display name and avatar only
	out := make([]fiber.Map, 0, len(records))
	for _, review := range records {
		entry := fiber.Map{
			"id":         review.ID,
			"rating":     review.Rating,
			"comment":    review.Comment,
			"created_at": review.CreatedAt,
		}
		if review.Client != nil {
			entry["client"] = fiber.Map{
				"name":          review.Client.Name,
				"profile_image": review.Client.ProfileImage,
			}
		}
		out = append(out, entry)
	}

	return c.JSON(fiber.Map{"reviews": out})
}
