package session_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	session "github.com/volunteerbridge/go-session"
)

func newTestController(t *testing.T, svc *MockSessionService, guard *MockGuard) (*session.AuthController, *session.Manager) {
	t.Helper()
	m := session.NewManager(svc, session.NewMemoryTokenStore())
	m.Initialize(context.Background())

	ctrl := session.NewAuthController(
		session.WithControllerSessions(m),
		session.WithControllerService(svc),
		session.WithControllerGuard(guard),
	)
	return ctrl, m
}

func TestNewAuthControllerPanicsWithoutDeps(t *testing.T) {
	assert.Panics(t, func() {
		session.NewAuthController()
	})
}

func TestLoginShowRendersForm(t *testing.T) {
	ctrl, _ := newTestController(t, new(MockSessionService), new(MockGuard))

	ctx := new(MockContext)
	ctx.On("Render", ctrl.Views.Login, mock.Anything).Return(nil).Once()

	require.NoError(t, ctrl.LoginShow(ctx))
	ctx.AssertExpectations(t)
}

func TestLoginPostSuccessRedirectsToIntent(t *testing.T) {
	svc := new(MockSessionService)
	guard := new(MockGuard)

	svc.On("Login", mock.Anything, "maria", "secret").Return(nil).Once()
	svc.On("CurrentUser", mock.Anything).
		Return(&session.User{Username: "maria"}, nil).Once()

	ctrl, m := newTestController(t, svc, guard)

	ctx := new(MockContext)
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*session.LoginRequest)
		payload.Username = "maria"
		payload.Password = "secret"
	}).Return(nil).Once()
	ctx.On("Context").Return(context.Background())
	guard.On("GetRedirect", ctx, "/dashboard").Return("/dashboard/tasks").Once()
	ctx.On("Redirect", "/dashboard/tasks", []int{router.StatusSeeOther}).Return(nil).Once()

	require.NoError(t, ctrl.LoginPost(ctx))

	assert.Equal(t, session.StateAuthenticated, m.State())
	ctx.AssertExpectations(t)
	guard.AssertExpectations(t)
}

func TestLoginPostMissingFieldsRendersValidation(t *testing.T) {
	svc := new(MockSessionService)
	ctrl, _ := newTestController(t, svc, new(MockGuard))

	ctx := new(MockContext)
	ctx.On("Bind", mock.Anything).Return(nil).Once()
	ctx.On("Render", ctrl.Views.Login, mock.MatchedBy(func(vc router.ViewContext) bool {
		errs, ok := vc["validation"].(map[string]string)
		return ok && errs["username"] != "" && errs["password"] != ""
	})).Return(nil).Once()

	require.NoError(t, ctrl.LoginPost(ctx))
	svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	ctx.AssertExpectations(t)
}

func TestLoginPostRejectedRendersInlineError(t *testing.T) {
	svc := new(MockSessionService)
	svc.On("Login", mock.Anything, "maria", "wrong").
		Return(session.NewAuthFailure(nil, "invalid credentials")).Once()

	ctrl, m := newTestController(t, svc, new(MockGuard))

	ctx := new(MockContext)
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*session.LoginRequest)
		payload.Username = "maria"
		payload.Password = "wrong"
	}).Return(nil).Once()
	ctx.On("Context").Return(context.Background())
	ctx.On("Render", ctrl.Views.Login, mock.MatchedBy(func(vc router.ViewContext) bool {
		errs, ok := vc["errors"].(map[string]string)
		return ok && errs["authentication"] == "Invalid username or password"
	})).Return(nil).Once()

	require.NoError(t, ctrl.LoginPost(ctx))
	assert.Equal(t, session.StateAnonymous, m.State())
	ctx.AssertExpectations(t)
}

func TestLoginPostUnreachableBackendMessage(t *testing.T) {
	svc := new(MockSessionService)
	svc.On("Login", mock.Anything, "maria", "secret").
		Return(session.NewNetworkFailure(errors.New("refused"))).Once()

	ctrl, _ := newTestController(t, svc, new(MockGuard))

	ctx := new(MockContext)
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*session.LoginRequest)
		payload.Username = "maria"
		payload.Password = "secret"
	}).Return(nil).Once()
	ctx.On("Context").Return(context.Background())
	ctx.On("Render", ctrl.Views.Login, mock.MatchedBy(func(vc router.ViewContext) bool {
		errs, ok := vc["errors"].(map[string]string)
		return ok && errs["authentication"] == "Unable to reach the server, try again"
	})).Return(nil).Once()

	require.NoError(t, ctrl.LoginPost(ctx))
	ctx.AssertExpectations(t)
}

func TestLogOutClearsSessionAndRedirectsHome(t *testing.T) {
	svc := new(MockSessionService)
	svc.On("Logout").Return()

	ctrl, m := newTestController(t, svc, new(MockGuard))

	ctx := new(MockContext)
	ctx.On("Redirect", "/", []int{router.StatusTemporaryRedirect}).Return(nil).Once()

	require.NoError(t, ctrl.LogOut(ctx))
	assert.Equal(t, session.StateAnonymous, m.State())
	ctx.AssertExpectations(t)
}

func TestProfileShowUsesGuardStoredUser(t *testing.T) {
	ctrl, _ := newTestController(t, new(MockSessionService), new(MockGuard))
	user := &session.User{Username: "maria"}

	ctx := new(MockContext)
	ctx.On("Locals", "current_user").Return(user).Once()
	ctx.On("Render", ctrl.Views.Profile, mock.MatchedBy(func(vc router.ViewContext) bool {
		return vc["record"] == user
	})).Return(nil).Once()

	require.NoError(t, ctrl.ProfileShow(ctx))
	ctx.AssertExpectations(t)
}

func TestProfileShowWithoutUserRedirects(t *testing.T) {
	ctrl, _ := newTestController(t, new(MockSessionService), new(MockGuard))

	ctx := new(MockContext)
	ctx.On("Locals", "current_user").Return(nil).Once()
	ctx.On("Redirect", ctrl.Routes.Login, []int{router.StatusSeeOther}).Return(nil).Once()

	require.NoError(t, ctrl.ProfileShow(ctx))
	ctx.AssertExpectations(t)
}

func TestProfileUpdateUnauthorizedInvalidatesSession(t *testing.T) {
	svc := new(MockSessionService)
	guard := new(MockGuard)

	svc.On("Login", mock.Anything, "maria", "secret").Return(nil).Once()
	svc.On("CurrentUser", mock.Anything).
		Return(&session.User{Username: "maria"}, nil).Once()
	svc.On("UpdateProfile", mock.Anything, mock.Anything).
		Return(nil, session.NewUnauthorizedRequest(errors.New("401"))).Once()
	svc.On("Logout").Return()

	ctrl, m := newTestController(t, svc, guard)
	_, err := m.Login(context.Background(), "maria", "secret")
	require.NoError(t, err)

	ctx := new(MockContext)
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*session.ProfileEditPayload)
		payload.Email = "maria@example.com"
	}).Return(nil).Once()
	ctx.On("Context").Return(context.Background())
	ctx.On("Redirect", ctrl.Routes.Login, []int{router.StatusSeeOther}).Return(nil).Once()

	require.NoError(t, ctrl.ProfileUpdate(ctx))

	// The dead credential forces the session out.
	assert.Equal(t, session.StateAnonymous, m.State())
	ctx.AssertExpectations(t)
}

func TestProfileUpdateInvalidEmailRendersValidation(t *testing.T) {
	svc := new(MockSessionService)
	ctrl, _ := newTestController(t, svc, new(MockGuard))

	ctx := new(MockContext)
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*session.ProfileEditPayload)
		payload.Email = "not-an-email"
	}).Return(nil).Once()
	ctx.On("Render", ctrl.Views.Profile, mock.MatchedBy(func(vc router.ViewContext) bool {
		errs, ok := vc["validation"].(map[string]string)
		return ok && errs["email"] != ""
	})).Return(nil).Once()

	require.NoError(t, ctrl.ProfileUpdate(ctx))
	svc.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
	ctx.AssertExpectations(t)
}

func TestRegistrationPayloadValidation(t *testing.T) {
	valid := session.RegistrationCreatePayload{
		Username:        "maria",
		Email:           "maria@example.com",
		Password:        "supersecret",
		ConfirmPassword: "supersecret",
		Phone:           "(212) 555-0123",
	}
	assert.NoError(t, valid.Validate())

	mismatched := valid
	mismatched.ConfirmPassword = "different-pass"
	err := mismatched.Validate()
	require.Error(t, err)
	errs := session.FormatValidationErrorToMap(err)
	assert.Contains(t, errs["confirm_password"], "match")

	badPhone := valid
	badPhone.Phone = "not a phone"
	err = badPhone.Validate()
	require.Error(t, err)
	errs = session.FormatValidationErrorToMap(err)
	assert.NotEmpty(t, errs["phone"])

	noPhone := valid
	noPhone.Phone = ""
	assert.NoError(t, noPhone.Validate())

	shortPassword := valid
	shortPassword.Password = "short"
	shortPassword.ConfirmPassword = "short"
	assert.Error(t, shortPassword.Validate())
}

func TestRegistrationPayloadMessageSplitsLists(t *testing.T) {
	payload := session.RegistrationCreatePayload{
		Username:    "maria",
		Email:       "maria@example.com",
		IsVolunteer: true,
		Skills:      "first aid, cooking , ,driving",
		Interests:   "",
	}

	msg := payload.Message()
	assert.Equal(t, []string{"first aid", "cooking", "driving"}, msg.Skills)
	assert.Nil(t, msg.Interests)
	assert.True(t, msg.IsVolunteer)
	assert.Equal(t, "session.register", msg.Type())
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, session.FormatValidationErrorToMap(nil))

	out := session.FormatValidationErrorToMap(errors.New("boom"))
	assert.Equal(t, "boom", out["form"])

	payload := session.LoginRequest{}
	out = session.FormatValidationErrorToMap(payload.Validate())
	assert.NotEmpty(t, out["username"])
	assert.NotEmpty(t, out["password"])
}

func TestStatusErrorHelperRoundTrip(t *testing.T) {
	err := session.NewStatusError(http.StatusForbidden, []byte("denied"))
	assert.Equal(t, http.StatusForbidden, session.StatusFromError(err))
	assert.Equal(t, "denied", session.ResponseBodyFromError(err))
}
