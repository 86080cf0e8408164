package verification_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"verify-gateway/internal/audit"
	"verify-gateway/internal/device"
	"verify-gateway/internal/platform/logger"
	"verify-gateway/internal/sdk"
	"verify-gateway/internal/statetoken"
	"verify-gateway/internal/verification"
	"verify-gateway/internal/verification/store"
	"verify-gateway/internal/widget"
	mockverification "verify-gateway/mocks/verification"
	dErrors "verify-gateway/pkg/domain-errors"
	"verify-gateway/pkg/platform/sentinel"
	"verify-gateway/pkg/testutil"
)

const serenityUA = "SerenityApp/3.2 (iPhone; iOS 17.4)"

type fixture struct {
	svc    *verification.Service
	store  verification.Store
	audit  *audit.Publisher
	tokens *statetoken.Service
	server *httptest.Server
}

func newFixture(t *testing.T, st verification.Store, script string) *fixture {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(script))
	}))
	t.Cleanup(server.Close)

	sources, err := sdk.NewSources(server.URL)
	require.NoError(t, err)
	loader := sdk.NewLoader(sources, sdk.WithCandidateTimeout(2*time.Second))

	tokens := statetoken.NewService("test-signing-key", time.Minute)
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), 16)

	svc := verification.New(
		verification.Config{
			AppID:             "app_serenity_dev",
			Action:            "serenity-home",
			VerificationLevel: "orb",
			CallbackBase:      "https://serenity.example/callback",
			CallbackBaseDev:   "https://dev.serenity.example/callback",
		},
		loader,
		widget.NewBootstrap(loader),
		device.NewDetector("SerenityApp"),
		device.NewService(true),
		st,
		tokens,
		auditor,
		nil,
		logger.New(),
	)
	return &fixture{svc: svc, store: st, audit: auditor, tokens: tokens, server: server}
}

func TestService_StartClassifiesEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		flags    device.Flags
		wantEnv  device.Environment
		wantMode verification.Mode
	}{
		{
			name:     "dedicated client by marker",
			ua:       serenityUA,
			wantEnv:  device.EnvDedicatedClient,
			wantMode: verification.ModeAutoOpen,
		},
		{
			name:     "dedicated client by flag",
			ua:       "Mozilla/5.0 (Macintosh) Chrome/120.0",
			flags:    device.Flags{DedicatedClient: true},
			wantEnv:  device.EnvDedicatedClient,
			wantMode: verification.ModeAutoOpen,
		},
		{
			name:     "generic browser",
			ua:       "Mozilla/5.0 (Macintosh) Chrome/120.0",
			wantEnv:  device.EnvGenericBrowser,
			wantMode: verification.ModeBanner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")

			result, err := f.svc.Start(context.Background(), verification.StartParams{
				UserAgent: tt.ua,
				Flags:     tt.flags,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantEnv, result.Session.Environment)
			assert.Equal(t, tt.wantMode, result.Session.Mode)
			assert.Equal(t, verification.StatusPending, result.Session.Status)
			assert.NotEmpty(t, result.State)
		})
	}
}

func TestService_StartFixesWidgetAttrs(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")

	result, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)

	assert.Equal(t, "app_serenity_dev", result.WidgetAttrs["app-id"])
	assert.Equal(t, "serenity-home", result.WidgetAttrs["action"])
	assert.Equal(t, "orb", result.WidgetAttrs["verification-level"])
	assert.Equal(t, "true", result.WidgetAttrs["enable-telemetry"])
}

func TestService_StartAuditsSessionCreation(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "window.IDKit = {}")

	result, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)

	events, err := f.audit.List(context.Background(), result.Session.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionSessionCreated, events[0].Action)
}

func TestService_ScriptServesBundle(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "window.IDKit = {}")

	bundle, err := f.svc.Script(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []byte("window.IDKit = {}"), bundle.Script)
	assert.Equal(t, f.server.URL, bundle.SourceURL)
}

func TestService_ScriptExhaustionIsUnavailable(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(dead.Close)

	sources, err := sdk.NewSources(dead.URL)
	require.NoError(t, err)
	loader := sdk.NewLoader(sources, sdk.WithMaxCycles(1))

	svc := verification.New(
		verification.Config{AppID: "app_serenity_dev"},
		loader,
		widget.NewBootstrap(loader),
		device.NewDetector("SerenityApp"),
		device.NewService(true),
		store.NewInMemoryStore(),
		statetoken.NewService("k", time.Minute),
		audit.NewPublisher(audit.NewInMemoryStore(), 4),
		nil,
		logger.New(),
	)

	_, err = svc.Script(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))
}

func TestService_OpenMarksSessionOpened(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")

	var result *verification.StartResult
	testutil.Given(t, "a pending session in the dedicated client", func(t *testing.T) {
		var err error
		result, err = f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
		require.NoError(t, err)
	})

	var session *verification.Session
	testutil.When(t, "the widget is opened", func(t *testing.T) {
		var err error
		session, err = f.svc.Open(context.Background(), result.Session.ID, "")
		require.NoError(t, err)
	})

	testutil.Then(t, "the session is opened and audited", func(t *testing.T) {
		assert.Equal(t, verification.StatusOpened, session.Status)
		events, err := f.audit.List(context.Background(), session.ID)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, audit.ActionWidgetOpened, events[1].Action)
	})
}

func TestService_OpenUnknownSession(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")

	_, err := f.svc.Open(context.Background(), uuid.New(), "")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestService_OpenTwiceConflicts(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")
	result, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)

	_, err = f.svc.Open(context.Background(), result.Session.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Open(context.Background(), result.Session.ID, "")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestService_OpenWithoutSDKSurface(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "console.log('nothing here')")
	result, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)

	_, err = f.svc.Open(context.Background(), result.Session.ID, "")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))
}

func TestService_CompleteSuccessBuildsRedirect(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")
	started, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)
	_, err = f.svc.Open(context.Background(), started.Session.ID, "")
	require.NoError(t, err)

	result, err := f.svc.Complete(context.Background(), verification.CompleteParams{
		SessionID: started.Session.ID,
		State:     started.State,
		Outcome: widget.Outcome{
			Kind:    widget.OutcomeSuccess,
			Payload: json.RawMessage(`{"nonce": "abc"}`),
		},
		Host: "serenity.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://serenity.example/callback?result=%7B%22nonce%22%3A%22abc%22%7D", result.RedirectURL)
	assert.False(t, result.Retry)

	saved, err := f.store.FindByID(context.Background(), started.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusSucceeded, saved.Status)
	assert.JSONEq(t, `{"nonce":"abc"}`, string(saved.Result))
}

func TestService_CompleteSuccessUsesDevCallbackOnLoopback(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")
	started, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)
	_, err = f.svc.Open(context.Background(), started.Session.ID, "")
	require.NoError(t, err)

	result, err := f.svc.Complete(context.Background(), verification.CompleteParams{
		SessionID: started.Session.ID,
		State:     started.State,
		Outcome:   widget.Outcome{Kind: widget.OutcomeSuccess, Payload: json.RawMessage(`{}`)},
		Host:      "localhost:3000",
	})
	require.NoError(t, err)
	assert.Contains(t, result.RedirectURL, "https://dev.serenity.example/callback")
}

func TestService_CompleteErrorAllowsRetry(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")
	started, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)
	_, err = f.svc.Open(context.Background(), started.Session.ID, "")
	require.NoError(t, err)

	result, err := f.svc.Complete(context.Background(), verification.CompleteParams{
		SessionID: started.Session.ID,
		State:     started.State,
		Outcome:   widget.Outcome{Kind: widget.OutcomeError, Message: "verification rejected"},
	})
	require.NoError(t, err)
	assert.True(t, result.Retry)
	assert.Equal(t, "verification rejected", result.Message)

	// The flow re-arms: the session can be opened again.
	_, err = f.svc.Open(context.Background(), started.Session.ID, "")
	require.NoError(t, err)
}

func TestService_CompleteDismissalAllowsRetry(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")
	started, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)
	_, err = f.svc.Open(context.Background(), started.Session.ID, "")
	require.NoError(t, err)

	result, err := f.svc.Complete(context.Background(), verification.CompleteParams{
		SessionID: started.Session.ID,
		State:     started.State,
		Outcome:   widget.Outcome{Kind: widget.OutcomeClosed},
	})
	require.NoError(t, err)
	assert.True(t, result.Retry)

	saved, err := f.store.FindByID(context.Background(), started.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusDismissed, saved.Status)
}

func TestService_CompleteRejectsForeignState(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")
	started, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)
	_, err = f.svc.Open(context.Background(), started.Session.ID, "")
	require.NoError(t, err)

	// A state minted for a different session must not settle this one.
	foreign, err := f.tokens.Mint(uuid.New(), "serenity-home", "dedicated_client")
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), verification.CompleteParams{
		SessionID: started.Session.ID,
		State:     foreign,
		Outcome:   widget.Outcome{Kind: widget.OutcomeSuccess, Payload: json.RawMessage(`{}`)},
	})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func TestService_CompleteWithoutOpenFlow(t *testing.T) {
	f := newFixture(t, store.NewInMemoryStore(), "<idkit-widget></idkit-widget>")
	started, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), verification.CompleteParams{
		SessionID: started.Session.ID,
		State:     started.State,
		Outcome:   widget.Outcome{Kind: widget.OutcomeClosed},
	})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestService_StorePersistenceFailuresSurface(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := mockverification.NewMockStore(ctrl)
	mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(assert.AnError)

	f := newFixture(t, mockStore, "<idkit-widget></idkit-widget>")

	_, err := f.svc.Start(context.Background(), verification.StartParams{UserAgent: serenityUA})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(err))
}

func TestService_OpenReadFailureSurfaces(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := mockverification.NewMockStore(ctrl)
	mockStore.EXPECT().
		FindByID(gomock.Any(), gomock.Any()).
		Return(verification.Session{}, sentinel.ErrNotFound)

	f := newFixture(t, mockStore, "<idkit-widget></idkit-widget>")

	_, err := f.svc.Open(context.Background(), uuid.New(), "")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}
