package profiles_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/server/servertest"
	"bookshelf/pkg/models"
)

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (c apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func signUp(t *testing.T, base, email, username string) (apiClient, string) {
	t.Helper()
	var s struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	anon := apiClient{t: t, base: base}
	code := anon.do(http.MethodPost, "/auth/signup", map[string]string{
		"email": email, "password": "correct-horse", "username": username,
	}, &s)
	require.Equal(t, http.StatusCreated, code)
	return apiClient{t: t, base: base, token: s.AccessToken}, s.User.ID
}

func TestGetProfile(t *testing.T) {
	stack := servertest.New(t)
	c, uid := signUp(t, stack.URL, "a@example.com", "reader")

	var p models.Profile
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/rest/profiles/"+uid, nil, &p))
	assert.Equal(t, uid, p.ID)
	require.NotNil(t, p.Username)
	assert.Equal(t, "reader", *p.Username)
	assert.Nil(t, p.FullName)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/rest/profiles/nobody", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, apiClient{t: t, base: stack.URL}.do(http.MethodGet, "/rest/profiles/"+uid, nil, nil))
}

func TestUpdateWritesOnlySuppliedFields(t *testing.T) {
	stack := servertest.New(t)
	c, uid := signUp(t, stack.URL, "a@example.com", "reader")

	require.Equal(t, http.StatusNoContent, c.do(http.MethodPatch, "/rest/profiles/"+uid, map[string]string{
		"full_name": "Ada Reader",
	}, nil))
	require.Equal(t, http.StatusNoContent, c.do(http.MethodPatch, "/rest/profiles/"+uid, map[string]string{
		"username": "  countess  ",
	}, nil))

	var p models.Profile
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/rest/profiles/"+uid, nil, &p))
	assert.Equal(t, "countess", *p.Username)
	assert.Equal(t, "Ada Reader", *p.FullName)
	assert.Nil(t, p.AvatarURL)
}

func TestUpdateIsOwnerOnly(t *testing.T) {
	stack := servertest.New(t)
	owner, uid := signUp(t, stack.URL, "owner@example.com", "owner")
	other, _ := signUp(t, stack.URL, "other@example.com", "other")

	code := other.do(http.MethodPatch, "/rest/profiles/"+uid, map[string]string{"full_name": "Mallory"}, nil)
	assert.Equal(t, http.StatusForbidden, code)

	var p models.Profile
	require.Equal(t, http.StatusOK, owner.do(http.MethodGet, "/rest/profiles/"+uid, nil, &p))
	assert.Nil(t, p.FullName)
}

func TestUpdateValidation(t *testing.T) {
	stack := servertest.New(t)
	c, uid := signUp(t, stack.URL, "a@example.com", "reader")

	for name, body := range map[string]any{
		"empty":          map[string]string{},
		"short username": map[string]string{"username": "ab"},
		"padded short":   map[string]string{"username": "  ab  "},
		"long username":  map[string]string{"username": strings.Repeat("x", 31)},
		"not json":       "plain",
	} {
		t.Run(name, func(t *testing.T) {
			c.t = t
			assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPatch, "/rest/profiles/"+uid, body, nil))
		})
	}
}

func TestUpdateUsernameConflict(t *testing.T) {
	stack := servertest.New(t)
	signUp(t, stack.URL, "taken@example.com", "taken")
	c, uid := signUp(t, stack.URL, "a@example.com", "reader")

	code := c.do(http.MethodPatch, "/rest/profiles/"+uid, map[string]string{"username": "taken"}, nil)
	assert.Equal(t, http.StatusConflict, code)

	var p models.Profile
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/rest/profiles/"+uid, nil, &p))
	assert.Equal(t, "reader", *p.Username)
}
