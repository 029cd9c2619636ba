package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
	"github.com/sagebridge-health/sagebridge-backend/internal/types"
)

func newAuthServiceForTest(env *testEnv) AuthService {
	return NewAuthService(env.db, env.log, env.userRepo, env.userTokenRepo, "test-secret", time.Hour, 24*time.Hour)
}

func TestRegisterUser_DefaultsToTherapistAndRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	as := newAuthServiceForTest(env)

	user := &types.User{
		Email:     "Dana@Example.com ",
		Password:  "hunter22",
		FirstName: "Dana",
		LastName:  "Reyes",
	}
	if err := as.RegisterUser(context.Background(), user); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.Role != types.RoleTherapist {
		t.Fatalf("role = %q, want therapist default", user.Role)
	}
	if user.Password == "hunter22" {
		t.Fatalf("password stored in plaintext")
	}

	dup := &types.User{Email: "dana@example.com", Password: "x", FirstName: "D", LastName: "R"}
	err := as.RegisterUser(context.Background(), dup)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestRegisterUser_ValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	as := newAuthServiceForTest(env)

	cases := []struct {
		name string
		user types.User
	}{
		{"missing email", types.User{Password: "x", FirstName: "a", LastName: "b"}},
		{"missing password", types.User{Email: "a@b.com", FirstName: "a", LastName: "b"}},
		{"bad role", types.User{Email: "a@b.com", Password: "x", FirstName: "a", LastName: "b", Role: "admin"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			u := c.user
			if err := as.RegisterUser(context.Background(), &u); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestLoginRefreshLogout_FullCycle(t *testing.T) {
	env := newTestEnv(t)
	as := newAuthServiceForTest(env)

	user := &types.User{Email: "dana@example.com", Password: "hunter22", FirstName: "Dana", LastName: "Reyes"}
	if err := as.RegisterUser(context.Background(), user); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	access, refresh, err := as.LoginUser(context.Background(), "dana@example.com", "hunter22")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatalf("empty tokens from login")
	}

	ctx, err := as.SetContextFromToken(context.Background(), access)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID != user.ID {
		t.Fatalf("request data not populated: %+v", rd)
	}
	if rd.Role != types.RoleTherapist {
		t.Fatalf("role claim = %q, want therapist", rd.Role)
	}

	newAccess, newRefresh, err := as.RefreshUser(ctx, refresh)
	if err != nil {
		t.Fatalf("RefreshUser: %v", err)
	}
	if newRefresh == refresh {
		t.Fatalf("refresh token was not rotated")
	}
	if newAccess == "" {
		t.Fatalf("empty rotated access token")
	}

	// old refresh token is dead after rotation
	if _, _, err := as.RefreshUser(ctx, refresh); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stale refresh token, got %v", err)
	}

	if err := as.LogoutUser(ctx); err != nil {
		t.Fatalf("LogoutUser: %v", err)
	}
	if _, _, err := as.RefreshUser(ctx, newRefresh); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden after logout, got %v", err)
	}
}

func TestLoginUser_RejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	as := newAuthServiceForTest(env)

	user := &types.User{Email: "dana@example.com", Password: "hunter22", FirstName: "Dana", LastName: "Reyes"}
	if err := as.RegisterUser(context.Background(), user); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	if _, _, err := as.LoginUser(context.Background(), "dana@example.com", "wrong"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for wrong password, got %v", err)
	}
	if _, _, err := as.LoginUser(context.Background(), "nobody@example.com", "hunter22"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unknown email, got %v", err)
	}
}

func TestSetContextFromToken_RejectsTamperedToken(t *testing.T) {
	env := newTestEnv(t)
	as := newAuthServiceForTest(env)
	other := NewAuthService(env.db, env.log, env.userRepo, env.userTokenRepo, "different-secret", time.Hour, 24*time.Hour)

	user := &types.User{Email: "dana@example.com", Password: "hunter22", FirstName: "Dana", LastName: "Reyes"}
	if err := as.RegisterUser(context.Background(), user); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	access, _, err := as.LoginUser(context.Background(), "dana@example.com", "hunter22")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}

	if _, err := other.SetContextFromToken(context.Background(), access); err == nil {
		t.Fatalf("expected signature verification to fail across secrets")
	}
}
