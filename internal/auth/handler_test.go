package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/server/servertest"
)

type sessionBody struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
	} `json:"user"`
}

func post(t *testing.T, url, token string, body any, out any) int {
	t.Helper()
	return call(t, http.MethodPost, url, token, body, out)
}

func call(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSignUpValidation(t *testing.T) {
	stack := servertest.New(t)
	url := stack.URL + "/auth/signup"

	cases := map[string]struct {
		body map[string]string
		want int
	}{
		"no at sign":       {map[string]string{"email": "nope", "password": "longenough"}, http.StatusBadRequest},
		"short password":   {map[string]string{"email": "a@example.com", "password": "short"}, http.StatusBadRequest},
		"short username":   {map[string]string{"email": "a@example.com", "password": "longenough", "username": "ab"}, http.StatusBadRequest},
		"without username": {map[string]string{"email": "a@example.com", "password": "longenough"}, http.StatusCreated},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, post(t, url, "", tc.body, nil))
		})
	}
}

func TestSignUpConflicts(t *testing.T) {
	stack := servertest.New(t)
	url := stack.URL + "/auth/signup"

	require.Equal(t, http.StatusCreated, post(t, url, "", map[string]string{
		"email": "a@example.com", "password": "longenough", "username": "reader",
	}, nil))
	assert.Equal(t, http.StatusConflict, post(t, url, "", map[string]string{
		"email": "A@example.com", "password": "longenough",
	}, nil))
	assert.Equal(t, http.StatusConflict, post(t, url, "", map[string]string{
		"email": "b@example.com", "password": "longenough", "username": "reader",
	}, nil))
}

func TestSignInAndUser(t *testing.T) {
	stack := servertest.New(t)

	var created sessionBody
	require.Equal(t, http.StatusCreated, post(t, stack.URL+"/auth/signup", "", map[string]string{
		"email": "a@example.com", "password": "longenough", "username": "reader",
	}, &created))
	assert.Equal(t, "bearer", created.TokenType)

	assert.Equal(t, http.StatusUnauthorized, post(t, stack.URL+"/auth/signin", "", map[string]string{
		"email": "a@example.com", "password": "wrong-password",
	}, nil))

	var s sessionBody
	require.Equal(t, http.StatusOK, post(t, stack.URL+"/auth/signin", "", map[string]string{
		"email": "A@Example.com", "password": "longenough",
	}, &s))
	assert.Equal(t, created.User.ID, s.User.ID)

	var me struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, stack.URL+"/auth/user", s.AccessToken, nil, &me))
	assert.Equal(t, "reader", me.Username)
}

func TestSignOutRevokesEveryToken(t *testing.T) {
	stack := servertest.New(t)

	var first sessionBody
	require.Equal(t, http.StatusCreated, post(t, stack.URL+"/auth/signup", "", map[string]string{
		"email": "a@example.com", "password": "longenough",
	}, &first))
	var second sessionBody
	require.Equal(t, http.StatusOK, post(t, stack.URL+"/auth/signin", "", map[string]string{
		"email": "a@example.com", "password": "longenough",
	}, &second))

	require.Equal(t, http.StatusOK, post(t, stack.URL+"/auth/signout", second.AccessToken, nil, nil))

	assert.Equal(t, http.StatusUnauthorized, call(t, http.MethodGet, stack.URL+"/auth/user", first.AccessToken, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, http.MethodGet, stack.URL+"/auth/user", second.AccessToken, nil, nil))
}

func TestChangePassword(t *testing.T) {
	stack := servertest.New(t)

	var s sessionBody
	require.Equal(t, http.StatusCreated, post(t, stack.URL+"/auth/signup", "", map[string]string{
		"email": "a@example.com", "password": "longenough",
	}, &s))

	assert.Equal(t, http.StatusUnauthorized, post(t, stack.URL+"/auth/change-password", s.AccessToken, map[string]string{
		"old_password": "not-it", "new_password": "evenlonger",
	}, nil))
	require.Equal(t, http.StatusOK, post(t, stack.URL+"/auth/change-password", s.AccessToken, map[string]string{
		"old_password": "longenough", "new_password": "evenlonger",
	}, nil))

	assert.Equal(t, http.StatusUnauthorized, call(t, http.MethodGet, stack.URL+"/auth/user", s.AccessToken, nil, nil))
	assert.Equal(t, http.StatusOK, post(t, stack.URL+"/auth/signin", "", map[string]string{
		"email": "a@example.com", "password": "evenlonger",
	}, nil))
}

func TestMissingBearer(t *testing.T) {
	stack := servertest.New(t)
	assert.Equal(t, http.StatusUnauthorized, call(t, http.MethodGet, stack.URL+"/rest/user_books", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, http.MethodGet, stack.URL+"/rest/user_books", "not-a-jwt", nil, nil))
}
