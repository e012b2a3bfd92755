package session

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/nyaruka/phonenumbers"
)

// RegisterAuthRoutes mounts the login/registration/logout/profile surface
// on the given router. Profile routes are wrapped by the controller's guard.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)
	protected := controller.Guard.Protected()

	app.
		Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(controller.Routes.Profile, controller.ProfileShow, protected).
		SetName("profile.get")
	app.Post(controller.Routes.Profile, controller.ProfileUpdate, protected).
		SetName("profile.post")
}

type AuthControllerRoutes struct {
	Login    string
	Logout   string
	Register string
	Profile  string
}

type AuthControllerViews struct {
	Login    string
	Register string
	Profile  string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Sessions     *Manager
	Service      SessionService
	Guard        SessionGuard
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerSessions(sessions *Manager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Sessions = sessions
		return c
	}
}

func WithControllerService(svc SessionService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Service = svc
		return c
	}
}

func WithControllerGuard(guard SessionGuard) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Guard = guard
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:    "/login",
			Logout:   "/logout",
			Register: "/register",
			Profile:  "/profile",
		},
		Views: &AuthControllerViews{
			Login:    "login",
			Register: "register",
			Profile:  "profile",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Sessions == nil {
		panic("Missing session Manager in auth controller...")
	}

	if c.Service == nil {
		panic("Missing SessionService in auth controller...")
	}

	if c.Guard == nil {
		panic("Missing SessionGuard in auth controller...")
	}

	return c
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	errs := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= SESSION LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	if _, err := a.Sessions.Login(ctx.Context(), payload.Username, payload.Password); err != nil {
		errs["authentication"] = "Invalid username or password"
		if IsNetworkFailure(err) {
			errs["authentication"] = "Unable to reach the server, try again"
		}
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	redirect := a.Guard.GetRedirect(ctx, "/dashboard")

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Sessions.Logout()
	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

func (a *AuthController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegisterUserMessage{},
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	IsVolunteer     bool   `form:"is_volunteer" json:"is_volunteer"`
	IsOrganization  bool   `form:"is_organization" json:"is_organization"`
	Phone           string `form:"phone" json:"phone"`
	Address         string `form:"address" json:"address"`
	Bio             string `form:"bio" json:"bio"`
	Skills          string `form:"skills" json:"skills"`
	Interests       string `form:"interests" json:"interests"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 150)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber("US"))),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// Message converts the form payload into the registration message posted to
// the backend. Comma-separated skills/interests become lists.
func (r RegistrationCreatePayload) Message() RegisterUserMessage {
	return RegisterUserMessage{
		Username:       r.Username,
		Email:          r.Email,
		Password:       r.Password,
		IsVolunteer:    r.IsVolunteer,
		IsOrganization: r.IsOrganization,
		Phone:          r.Phone,
		Address:        r.Address,
		Bio:            r.Bio,
		Skills:         splitList(r.Skills),
		Interests:      splitList(r.Interests),
	}
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		errs := map[string]string{}
		errs["form"] = "Failed to parse form"
		a.Logger.Error("register user parse payload", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		errs := FormatValidationErrorToMap(err)
		a.Logger.Error("register user validate payload", "error", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Register, router.ViewContext{
			"record":     payload,
			"validation": errs,
		})
	}

	if err := a.Service.Register(ctx.Context(), payload.Message()); err != nil {
		a.Logger.Error("register user", "error", err)

		message := "Registration failed"
		if IsValidationFailure(err) {
			message = ResponseBodyFromError(err)
		}

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  message,
			"system_message": "Registration rejected",
		}).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": []string{message},
		})
	}

	// Registration does not log the user in; send them to the login form.
	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account created, you can sign in now",
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

func (a *AuthController) ProfileShow(ctx router.Context) error {
	user, ok := FromRouterContext(ctx, "")
	if !ok {
		return ctx.Redirect(a.Routes.Login, router.StatusSeeOther)
	}

	return ctx.Render(a.Views.Profile, router.ViewContext{
		"errors": map[string]string{},
		"record": user,
	})
}

// ProfileEditPayload is the profile form payload
type ProfileEditPayload struct {
	Email     string `form:"email" json:"email"`
	Phone     string `form:"phone" json:"phone"`
	Address   string `form:"address" json:"address"`
	Bio       string `form:"bio" json:"bio"`
	Skills    string `form:"skills" json:"skills"`
	Interests string `form:"interests" json:"interests"`
}

// Validate will validate the payload
func (r ProfileEditPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber("US"))),
		validation.Field(&r.Bio, validation.Length(0, 2000)),
	)
}

func (a *AuthController) ProfileUpdate(ctx router.Context) error {
	payload := new(ProfileEditPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("profile parse payload", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Profile, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	user, err := a.Service.UpdateProfile(ctx.Context(), ProfileMessage{
		Email:     payload.Email,
		Phone:     payload.Phone,
		Address:   payload.Address,
		Bio:       payload.Bio,
		Skills:    splitList(payload.Skills),
		Interests: splitList(payload.Interests),
	})
	if err != nil {
		if IsUnauthorizedRequest(err) {
			a.Sessions.Invalidate()
			return ctx.Redirect(a.Routes.Login, router.StatusSeeOther)
		}

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Profile update failed",
		}).Render(a.Views.Profile, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	// Backend response is the source of truth; push it into the session.
	if err := a.Sessions.SetUser(user); err != nil {
		a.Logger.Error("profile refresh transition", "error", err)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Profile updated",
	}).Render(a.Views.Profile, router.ViewContext{
		"errors": map[string]string{},
		"record": user,
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber accepts an empty value and otherwise requires a
// number parseable and valid for the given default region.
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		num, err := phonenumbers.Parse(s, region)
		if err != nil {
			return errors.New("must be a valid phone number")
		}
		if !phonenumbers.IsValidNumber(num) {
			return errors.New("must be a valid phone number")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a map of
// field to message the views can render inline.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
