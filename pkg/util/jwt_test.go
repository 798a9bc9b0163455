package util

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT("user-42", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	userID, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("user id = %q", userID)
	}
}

func TestParseJWTRejects(t *testing.T) {
	good, _ := GenerateJWT("u1", "secret", time.Hour)
	expiredClaims := jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(-time.Minute).Unix()}
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte("secret"))
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("secret"))
	numericUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7}).SignedString([]byte("secret"))

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"wrong secret", good, jwt.ErrTokenSignatureInvalid},
		{"expired", expired, jwt.ErrTokenExpired},
		{"missing user", noUser, jwt.ErrTokenInvalidClaims},
		{"numeric user", numericUser, jwt.ErrTokenInvalidClaims},
		{"garbage", "not-a-token", jwt.ErrTokenMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			secret := "secret"
			if tc.name == "wrong secret" {
				secret = "other"
			}
			_, err := ParseJWT(tc.token, secret)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Basic abc":  "",
		"Bearer a b": "",
		"Bearerabc":  "",
	}
	for header, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := ExtractToken(r); got != want {
			t.Errorf("ExtractToken(%q) = %q, want %q", header, got, want)
		}
	}
}
