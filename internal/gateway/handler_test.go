package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func ginContextForURL(t *testing.T, url string, header map[string]string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", url, nil)
	for k, v := range header {
		c.Request.Header.Set(k, v)
	}
	return c
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestResolveUserIDFromQuery(t *testing.T) {
	c := ginContextForURL(t, "/chat/ws?userId=42", nil)
	id, ok := resolveUserID(c)
	if !ok || id != 42 {
		t.Errorf("resolveUserID = %d, %v; want 42, true", id, ok)
	}
}

func TestResolveUserIDRejectsGarbageQuery(t *testing.T) {
	for _, raw := range []string{"abc", "-5", "0"} {
		c := ginContextForURL(t, "/chat/ws?userId="+raw, nil)
		if _, ok := resolveUserID(c); ok {
			t.Errorf("userId=%q should be rejected", raw)
		}
	}
}

func TestResolveUserIDFromTokenQuery(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"user_id": float64(7)})
	c := ginContextForURL(t, "/chat/ws?token="+token, nil)
	id, ok := resolveUserID(c)
	if !ok || id != 7 {
		t.Errorf("resolveUserID = %d, %v; want 7, true", id, ok)
	}
}

func TestResolveUserIDFromBearerHeader(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "9"})
	c := ginContextForURL(t, "/chat/ws", map[string]string{"Authorization": "Bearer " + token})
	id, ok := resolveUserID(c)
	if !ok || id != 9 {
		t.Errorf("resolveUserID = %d, %v; want 9, true", id, ok)
	}
}

func TestResolveUserIDMissing(t *testing.T) {
	c := ginContextForURL(t, "/chat/ws", nil)
	if _, ok := resolveUserID(c); ok {
		t.Error("no credentials should resolve to no user")
	}
}

func TestUserIDFromClaims(t *testing.T) {
	cases := []struct {
		name   string
		claims jwt.MapClaims
		want   int64
		ok     bool
	}{
		{"numeric user_id", jwt.MapClaims{"user_id": float64(3)}, 3, true},
		{"string user_id", jwt.MapClaims{"user_id": "11"}, 11, true},
		{"sub fallback", jwt.MapClaims{"sub": "5"}, 5, true},
		{"user_id wins over sub", jwt.MapClaims{"user_id": float64(3), "sub": "5"}, 3, true},
		{"non-numeric sub", jwt.MapClaims{"sub": "alice"}, 0, false},
		{"zero user_id", jwt.MapClaims{"user_id": float64(0)}, 0, false},
		{"empty", jwt.MapClaims{}, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := userIDFromClaims(tc.claims)
			if id != tc.want || ok != tc.ok {
				t.Errorf("userIDFromClaims = %d, %v; want %d, %v", id, ok, tc.want, tc.ok)
			}
		})
	}
}
