package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contacts-api/internal/auth"
	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
)

const bobGravatar = "https://www.gravatar.com/avatar/4b9bb80620f03eb3719e0a061c14283d"

// waitForMail returns the confirmation email handed to the mailer, failing the test if none
// arrives.
func (env *testEnv) waitForMail(t *testing.T) sentMail {
	t.Helper()
	select {
	case mail := <-env.mailer.sent:
		return mail
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation email was sent")
		return sentMail{}
	}
}

// login posts the login form.
func (env *testEnv) login(username, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "password": {password}}
	return env.runTest("POST", "/api/auth/login", strings.NewReader(form.Encode()),
		"Content-Type", "application/x-www-form-urlencoded")
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return hash
}

// TestSignup registers a new account. It expects the public user, a Gravatar avatar and a
// confirmation email.
func TestSignup(t *testing.T) {
	env := initializeContactsService(t)

	// Define expectations on SQL statements
	expectNoUser(env.mock, "bob@example.com")
	env.mock.ExpectExec("INSERT INTO users").
		WithArgs("bobby", "bob@example.com", sqlmock.AnyArg(), bobGravatar).
		WillReturnResult(sqlmock.NewResult(7, 1))

	// Run test and compare results
	recorder := env.runJSON("POST", "/api/auth/signup",
		`{"username": "bobby", "email": "bob@example.com", "password": "secret1"}`)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	var body model.SignupResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body.User.Id)
	assert.Equal(t, "bobby", body.User.Username)
	assert.Equal(t, bobGravatar, body.User.Avatar)
	assert.Equal(t, "User successfully created. Check your email for confirmation.", body.Detail)
	assert.NotContains(t, recorder.Body.String(), "secret1")
	assert.NotContains(t, recorder.Body.String(), "password")

	mail := env.waitForMail(t)
	assert.Equal(t, sentMail{"bob@example.com", "bobby", "http://example.com/"}, mail)
	env.assertExpectations(t)
}

// TestSignupExistingAccount expects 409 if the email is already registered.
func TestSignupExistingAccount(t *testing.T) {
	env := initializeContactsService(t)

	// Define expectations on SQL statements
	expectUserLookup(env.mock, bob)

	// Run test and compare results
	recorder := env.runJSON("POST", "/api/auth/signup",
		`{"username": "bobby", "email": "bob@example.com", "password": "secret1"}`)
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.JSONEq(t, `{"detail":"Account already exists"}`, recorder.Body.String())
	env.assertExpectations(t)
}

// TestSignupInvalid expects 422 for a password longer than allowed.
func TestSignupInvalid(t *testing.T) {
	env := initializeContactsService(t)

	recorder := env.runJSON("POST", "/api/auth/signup",
		`{"username": "bobby", "email": "bob@example.com", "password": "far-too-long"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var body validationDetail
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Detail, 1)
	assert.Equal(t, []string{"body", "password"}, body.Detail[0].Loc)
	env.assertExpectations(t)
}

// TestLogin expects a token pair for a confirmed user with the right password, and the refresh
// token to be stored.
func TestLogin(t *testing.T) {
	env := initializeContactsService(t)
	user := bob
	user.Password = hashed(t, "secret1")

	// Define expectations on SQL statements
	expectUserLookup(env.mock, user)
	env.mock.ExpectExec("UPDATE users SET refresh_token = ?").
		WithArgs(sqlmock.AnyArg(), user.Id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Run test and compare results
	recorder := env.login("bob@example.com", "secret1")
	assert.Equal(t, http.StatusOK, recorder.Code)

	var pair model.TokenPair
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &pair))
	assert.Equal(t, "bearer", pair.TokenType)

	email, err := env.tokens.Validate(pair.AccessToken, auth.ScopeAccess)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", email)
	_, err = env.tokens.Validate(pair.RefreshToken, auth.ScopeRefresh)
	assert.NoError(t, err)
	env.assertExpectations(t)
}

// TestLoginFailures expects 401 with a specific reason for each kind of failed login.
func TestLoginFailures(t *testing.T) {
	unconfirmed := bob
	unconfirmed.Confirmed = false
	unconfirmed.Password = hashed(t, "secret1")
	confirmed := bob
	confirmed.Password = unconfirmed.Password

	for _, tc := range []struct {
		name     string
		expect   func(mock sqlmock.Sqlmock)
		password string
		detail   string
	}{
		{"unknown email", func(mock sqlmock.Sqlmock) { expectNoUser(mock, bob.Email) }, "secret1", "Invalid email"},
		{"not confirmed", func(mock sqlmock.Sqlmock) { expectUserLookup(mock, unconfirmed) }, "secret1", "Email not confirmed"},
		{"wrong password", func(mock sqlmock.Sqlmock) { expectUserLookup(mock, confirmed) }, "secret2", "Invalid password"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := initializeContactsService(t)
			tc.expect(env.mock)

			recorder := env.login(bob.Email, tc.password)
			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
			assert.JSONEq(t, `{"detail":"`+tc.detail+`"}`, recorder.Body.String())
			env.assertExpectations(t)
		})
	}
}

// TestLoginMissingPassword expects 422 when a form field is missing.
func TestLoginMissingPassword(t *testing.T) {
	env := initializeContactsService(t)

	recorder := env.runTest("POST", "/api/auth/login", strings.NewReader("username=bob%40example.com"),
		"Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	env.assertExpectations(t)
}

// TestRefreshToken exchanges the stored refresh token for a new pair.
func TestRefreshToken(t *testing.T) {
	env := initializeContactsService(t)
	refresh, err := env.tokens.CreateRefreshToken(bob.Email)
	require.NoError(t, err)
	user := bob
	user.RefreshToken = &refresh

	// Define expectations on SQL statements
	expectUserLookup(env.mock, user)
	env.mock.ExpectExec("UPDATE users SET refresh_token = ?").
		WithArgs(sqlmock.AnyArg(), user.Id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Run test and compare results
	recorder := env.runTest("GET", "/api/auth/refresh_token", nil, "Authorization", "Bearer "+refresh)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var pair model.TokenPair
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &pair))
	assert.NotEqual(t, refresh, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
	env.assertExpectations(t)
}

// TestRefreshTokenMismatchRevokes expects that presenting a refresh token other than the stored
// one revokes the stored one.
func TestRefreshTokenMismatchRevokes(t *testing.T) {
	env := initializeContactsService(t)
	presented, err := env.tokens.CreateRefreshToken(bob.Email)
	require.NoError(t, err)
	stored, err := env.tokens.CreateRefreshToken(bob.Email)
	require.NoError(t, err)
	user := bob
	user.RefreshToken = &stored

	// Define expectations on SQL statements
	expectUserLookup(env.mock, user)
	env.mock.ExpectExec("UPDATE users SET refresh_token = ?").
		WithArgs(nil, user.Id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Run test and compare results
	recorder := env.runTest("GET", "/api/auth/refresh_token", nil, "Authorization", "Bearer "+presented)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.JSONEq(t, `{"detail":"Invalid refresh token"}`, recorder.Body.String())
	env.assertExpectations(t)
}

// TestRefreshTokenRejectsAccessToken expects that an access token cannot be used for a refresh.
func TestRefreshTokenRejectsAccessToken(t *testing.T) {
	env := initializeContactsService(t)

	recorder := env.runTest("GET", "/api/auth/refresh_token", nil, "Authorization", env.bearer(t, bob.Email))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	env.assertExpectations(t)
}

// TestConfirmedEmail confirms a new account with the token from the confirmation email.
func TestConfirmedEmail(t *testing.T) {
	env := initializeContactsService(t)
	token, err := env.tokens.CreateEmailToken(bob.Email)
	require.NoError(t, err)
	unconfirmed := bob
	unconfirmed.Confirmed = false

	// Define expectations on SQL statements
	expectUserLookup(env.mock, unconfirmed)
	env.mock.ExpectExec("UPDATE users SET confirmed = TRUE").
		WithArgs(bob.Email).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Run test and compare results
	recorder := env.runTest("GET", "/api/auth/confirmed_email/"+token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"message":"Email confirmed"}`, recorder.Body.String())
	env.assertExpectations(t)
}

// TestConfirmedEmailAlreadyConfirmed expects no database update for a confirmed account.
func TestConfirmedEmailAlreadyConfirmed(t *testing.T) {
	env := initializeContactsService(t)
	token, err := env.tokens.CreateEmailToken(bob.Email)
	require.NoError(t, err)

	// Define expectations on SQL statements
	expectUserLookup(env.mock, bob)

	// Run test and compare results
	recorder := env.runTest("GET", "/api/auth/confirmed_email/"+token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"message":"Your email is already confirmed"}`, recorder.Body.String())
	env.assertExpectations(t)
}

// TestConfirmedEmailInvalidToken expects 422 for a token of the wrong scope.
func TestConfirmedEmailInvalidToken(t *testing.T) {
	env := initializeContactsService(t)
	token, err := env.tokens.CreateAccessToken(bob.Email)
	require.NoError(t, err)

	recorder := env.runTest("GET", "/api/auth/confirmed_email/"+token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.JSONEq(t, `{"detail":"Invalid token for email verification"}`, recorder.Body.String())
	env.assertExpectations(t)
}

// TestConfirmedEmailUnknownUser expects 400 when the account behind the token is gone.
func TestConfirmedEmailUnknownUser(t *testing.T) {
	env := initializeContactsService(t)
	token, err := env.tokens.CreateEmailToken("ghost@example.com")
	require.NoError(t, err)

	// Define expectations on SQL statements
	expectNoUser(env.mock, "ghost@example.com")

	// Run test and compare results
	recorder := env.runTest("GET", "/api/auth/confirmed_email/"+token, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.JSONEq(t, `{"detail":"Verification error"}`, recorder.Body.String())
	env.assertExpectations(t)
}

// TestRequestEmail sends a new confirmation link to an unconfirmed account.
func TestRequestEmail(t *testing.T) {
	env := initializeContactsService(t)
	unconfirmed := bob
	unconfirmed.Confirmed = false

	// Define expectations on SQL statements
	expectUserLookup(env.mock, unconfirmed)

	// Run test and compare results
	recorder := env.runJSON("POST", "/api/auth/request_email", `{"email": "bob@example.com"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"message":"Check your email for confirmation."}`, recorder.Body.String())
	assert.Equal(t, "bob@example.com", env.waitForMail(t).email)
	env.assertExpectations(t)
}

// TestRequestEmailUnknownAddress answers like for a known address but sends nothing.
func TestRequestEmailUnknownAddress(t *testing.T) {
	env := initializeContactsService(t)

	// Define expectations on SQL statements
	expectNoUser(env.mock, "ghost@example.com")

	// Run test and compare results
	recorder := env.runJSON("POST", "/api/auth/request_email", `{"email": "ghost@example.com"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"message":"Check your email for confirmation."}`, recorder.Body.String())
	assert.Empty(t, env.mailer.sent)
	env.assertExpectations(t)
}

// TestRequestEmailAlreadyConfirmed answers like for any other address and sends nothing.
func TestRequestEmailAlreadyConfirmed(t *testing.T) {
	env := initializeContactsService(t)

	// Define expectations on SQL statements
	expectUserLookup(env.mock, bob)

	// Run test and compare results
	recorder := env.runJSON("POST", "/api/auth/request_email", `{"email": "bob@example.com"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"message":"Check your email for confirmation."}`, recorder.Body.String())
	assert.Empty(t, env.mailer.sent)
	env.assertExpectations(t)
}

// TestRequestEmailUsesPublicBaseURL expects the configured address in the link rather than the
// host the request was sent to (example.com).
func TestRequestEmailUsesPublicBaseURL(t *testing.T) {
	env := initializeContactsService(t, func(deps *Dependencies) {
		deps.PublicBaseURL = "https://contacts.example.org"
	})
	unconfirmed := bob
	unconfirmed.Confirmed = false

	// Define expectations on SQL statements
	expectUserLookup(env.mock, unconfirmed)

	// Run test and compare results
	recorder := env.runJSON("POST", "/api/auth/request_email", `{"email": "bob@example.com"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "https://contacts.example.org/", env.waitForMail(t).host)
	env.assertExpectations(t)
}
