package marketplace

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is the region used to parse national phone numbers.
const DefaultPhoneRegion = "GH"

// ValidatePhoneNumber checks that the value parses as a valid phone number
// for the region. Empty values pass, pair with validation.Required to force.
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		num, err := phonenumbers.Parse(s, region)
		if err != nil {
			return fmt.Errorf("invalid phone number")
		}
		if !phonenumbers.IsValidNumber(num) {
			return fmt.Errorf("invalid phone number")
		}
		return nil
	}
}

// AuthController serves registration, login and the email round trips.
type AuthController struct {
	Logger     Logger
	Repo       RepositoryManager
	Auther     *Auther
	Verifier   *VerifyEngine[ProfileData, *User]
	Google     *GoogleVerifier
	Social     *SocialLoginHandler
	Register   *RegisterUserHandler
	ResetInit  *InitializePasswordResetHandler
	ResetFinal *FinalizePasswordResetHandler
	Mailer     Mailer
}

func (a *AuthController) RegisterRoutes(router fiber.Router) {
	router.Post("/register", a.RegisterPost)
	router.Post("/login", a.LoginPost)
	router.Post("/google", a.GoogleLogin)
	router.Get("/verify-email", a.VerifyEmail)
	router.Post("/resend-verification", a.ResendVerification)
	router.Post("/forgot-password", a.ForgotPassword)
	router.Post("/reset-password", a.ResetPassword)
}

type RegisterPayload struct {
	Name     string `json:"name"`
	Fname    string `json:"fname"`
	Sname    string `json:"sname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(&r.Name, validation.Length(0, 200)),
		validation.Field(&r.Fname, validation.Length(0, 200)),
		validation.Field(&r.Sname, validation.Length(0, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber(DefaultPhoneRegion))),
		validation.Field(&r.UserType, validation.In("", string(TypeClient), string(TypeWorker))),
	)
}

func (a *AuthController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterPayload)

	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	var created *User
	msg := RegisterUserMessage{
		Name:      payload.Name,
		FirstName: payload.Fname,
		Surname:   payload.Sname,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
		UserType:  payload.UserType,
		OnResponse: func(user *User) {
			created = user
		},
	}

	if err := a.Register.Execute(c.UserContext(), msg); err != nil {
		return WriteError(c, a.Logger, err)
	}

	body := fiber.Map{
		"message": "Registration successful. Please check your email to verify your account.",
	}
	if created != nil {
		body["user"] = created.SafeCopy()
	}

	return c.Status(fiber.StatusCreated).JSON(body)
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// GetIdentifier returns the identifier, accepting email as an alias.
func (r LoginRequest) GetIdentifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Email
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	if payload.GetIdentifier() == "" {
		return WriteValidationError(c, fmt.Errorf("identifier is required"))
	}

	token, err := a.Auther.Login(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	user, err := a.Repo.Users().GetByIdentifier(c.UserContext(), payload.GetIdentifier())
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user.SafeCopy(),
	})
}

type GoogleLoginPayload struct {
	IDToken string `json:"id_token"`
}

func (r GoogleLoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDToken, validation.Required),
	)
}

func (a *AuthController) GoogleLogin(c *fiber.Ctx) error {
	payload := new(GoogleLoginPayload)

	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	if a.Google == nil {
		return WriteError(c, a.Logger, ErrGoogleLoginDisabled)
	}

	profile, err := a.Google.Verify(c.UserContext(), payload.IDToken)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	user, err := a.Social.Execute(c.UserContext(), profile)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	token, err := a.Auther.TokenService().Generate(identityFromUser(user))
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user.SafeCopy(),
	})
}

// VerifyEmail consumes the link from the verification email and renders an
// HTML result page, the click comes from a mail client, not the SPA.
func (a *AuthController) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")

	if _, err := a.Verifier.RedeemVerificationToken(c.UserContext(), token); err != nil {
		return c.Status(fiber.StatusBadRequest).Render("verify_result", fiber.Map{
			"success": false,
			"message": "This verification link is invalid or has expired.",
		})
	}

	return c.Render("verify_result", fiber.Map{
		"success": true,
		"message": "Your email has been verified. You can now log in.",
	})
}

type EmailPayload struct {
	Email string `json:"email"`
}

func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ResendVerification(c *fiber.Ctx) error {
	payload := new(EmailPayload)

	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	// respond the same whether or not the account exists
	accepted := fiber.Map{
		"message": "If an account exists for that email, a verification link has been sent.",
	}

	user, err := a.Repo.Users().GetByIdentifier(c.UserContext(), payload.Email)
	if err != nil {
		return c.JSON(accepted)
	}

	if user.IsEmailVerified {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "This email is already verified.",
		})
	}

	token, err := a.Verifier.IssueVerificationToken(c.UserContext(), user.ID)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	if a.Mailer != nil {
		if err := a.Mailer.SendVerification(c.UserContext(), user.Email, user.Name, token); err != nil {
			a.Logger.Error("failed to resend verification email to %s: %v", user.Email, err)
		}
	}

	return c.JSON(accepted)
}

func (a *AuthController) ForgotPassword(c *fiber.Ctx) error {
	payload := new(EmailPayload)

	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	msg := InitializePasswordResetMessage{Email: payload.Email}
	if err := a.ResetInit.Execute(c.UserContext(), msg); err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "If an account exists for that email, a reset link has been sent.",
	})
}

type ResetPasswordPayload struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
	)
}

func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)

	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, a.Logger, ErrUnableToParseData)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(c, err)
	}

	msg := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}
	if err := a.ResetFinal.Execute(c.UserContext(), msg); err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Your password has been reset. You can now log in.",
	})
}
