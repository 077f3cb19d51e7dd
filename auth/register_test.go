package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRegistration(t *testing.T) {
	valid := RegisterRequest{Username: "Alice1", Email: "a@b.c", Password: "pw_abcdefg1"}

	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
		wantOK bool
	}{
		{"valid request", func(*RegisterRequest) {}, true},
		{"underscore and dash allowed", func(r *RegisterRequest) { r.Username = "a_b-c" }, true},
		{"too short", func(r *RegisterRequest) { r.Username = "ab" }, false},
		{"too long", func(r *RegisterRequest) { r.Username = "abcdefghijklmnop" }, false},
		{"leading digit", func(r *RegisterRequest) { r.Username = "1Alice" }, false},
		{"illegal characters", func(r *RegisterRequest) { r.Username = "al!ce" }, false},
		{"banned name", func(r *RegisterRequest) { r.Username = "admin" }, false},
		{"banned name case-insensitive", func(r *RegisterRequest) { r.Username = "Admin" }, false},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }, false},
		{"email missing domain dot", func(r *RegisterRequest) { r.Email = "a@b" }, false},
		{"short password", func(r *RegisterRequest) { r.Password = "1234567" }, false},
		{"eight char password allowed", func(r *RegisterRequest) { r.Password = "12345678" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := validateRegistration(req)
			if tt.wantOK {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
