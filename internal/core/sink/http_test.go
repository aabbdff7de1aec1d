package sink

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/solatis/trapmapper/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hookPattern = regexp.MustCompile(`^http://xda\.local/hook`)

func newMockedSink(t *testing.T, cfg HTTPConfig, responder httpmock.Responder) *HTTPSink {
	t.Helper()
	mock := httpmock.NewMockTransport()
	mock.RegisterRegexpResponder(http.MethodGet, hookPattern, responder)

	s, err := NewHTTPSink(cfg, WithHTTPClient(&http.Client{Transport: mock}))
	require.NoError(t, err)
	return s
}

func TestHTTPSink_Success(t *testing.T) {
	var got *http.Request
	s := newMockedSink(t, HTTPConfig{URL: "http://xda.local/hook?type={1}&flow={2}&at={4}"},
		func(req *http.Request) (*http.Response, error) {
			got = req
			return httpmock.NewStringResponse(http.StatusAccepted, "queued"), nil
		})

	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := s.Execute(context.Background(), []any{1, 3, "flow A", "", ts, ""})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, result)

	require.NotNil(t, got)
	assert.Equal(t, "3", got.URL.Query().Get("type"))
	assert.Equal(t, "flow A", got.URL.Query().Get("flow"))
	assert.Equal(t, "2020-01-01 00:00:00.000", got.URL.Query().Get("at"))
	_, _, hasAuth := got.BasicAuth()
	assert.False(t, hasAuth, "no credentials configured, no Authorization header expected")
}

func TestHTTPSink_Non2xx(t *testing.T) {
	s := newMockedSink(t, HTTPConfig{URL: "http://xda.local/hook"},
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	result, err := s.Execute(context.Background(), nil)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrSink)

	var sinkErr *Error
	require.True(t, errors.As(err, &sinkErr))
	assert.Equal(t, http.StatusInternalServerError, sinkErr.Status)
	assert.Equal(t, KindHTTP, sinkErr.Kind)
}

func TestHTTPSink_TransportError(t *testing.T) {
	s := newMockedSink(t, HTTPConfig{URL: "http://xda.local/hook"},
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := s.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrSink)
}

func TestHTTPSink_BasicAuth(t *testing.T) {
	t.Setenv("TM_TEST_HOOK_USER", "operator")
	t.Setenv("TM_TEST_HOOK_PASS", "$env:TM_TEST_UNSET_VARIABLE")

	tests := []struct {
		name     string
		user     string
		pass     string
		wantAuth bool
		wantUser string
		wantPass string
	}{
		{name: "literal credentials", user: "admin", pass: "s3cret", wantAuth: true, wantUser: "admin", wantPass: "s3cret"},
		{name: "env user literal pass", user: "$env:TM_TEST_HOOK_USER", pass: "pw", wantAuth: true, wantUser: "operator", wantPass: "pw"},
		{name: "unset env password", user: "admin", pass: "$env:TM_TEST_UNSET_VARIABLE"},
		{name: "blank user", user: "  ", pass: "pw"},
		{name: "env value is used verbatim", user: "admin", pass: "$env:TM_TEST_HOOK_PASS", wantAuth: true, wantUser: "admin", wantPass: "$env:TM_TEST_UNSET_VARIABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *http.Request
			s := newMockedSink(t, HTTPConfig{URL: "http://xda.local/hook", UserName: tt.user, Password: tt.pass},
				func(req *http.Request) (*http.Response, error) {
					got = req
					return httpmock.NewStringResponse(http.StatusOK, ""), nil
				})

			_, err := s.Execute(context.Background(), nil)
			require.NoError(t, err)

			user, pass, ok := got.BasicAuth()
			assert.Equal(t, tt.wantAuth, ok)
			if tt.wantAuth {
				assert.Equal(t, tt.wantUser, user)
				assert.Equal(t, tt.wantPass, pass)
			}
		})
	}
}

func TestNewHTTPSink_RequiresURL(t *testing.T) {
	_, err := NewHTTPSink(HTTPConfig{})
	assert.Error(t, err)
}

func TestResolveCredential(t *testing.T) {
	t.Setenv("TM_TEST_CREDENTIAL", "from-env")

	assert.Equal(t, "from-env", ResolveCredential("$env:TM_TEST_CREDENTIAL"))
	assert.Equal(t, "literal", ResolveCredential("literal"))
	assert.Equal(t, "", ResolveCredential("$env:TM_TEST_NOT_SET"))
	assert.True(t, IsDefined("$env:TM_TEST_CREDENTIAL"))
	assert.False(t, IsDefined("$env:TM_TEST_NOT_SET"))
	assert.Equal(t, "$env:", ResolveCredential("$env:"))
}
