package authapi

import (
	"strings"
)

// Validation runs as ordered guard clauses: the first failing rule decides
// the 400 message, matching client expectations of one error at a time.

const (
	maxUsernameLen    = 32
	maxDisplayNameLen = 128
	maxEmailLen       = 254
)

func validateRegisterInput(username, displayName, email, password string) (string, bool) {
	if msg, ok := validateUsername(username); !ok {
		return msg, false
	}
	if strings.TrimSpace(displayName) == "" {
		return "displayName is required", false
	}
	if len(displayName) > maxDisplayNameLen {
		return "displayName is too long", false
	}
	if msg, ok := validateEmail(email); !ok {
		return msg, false
	}
	if strings.TrimSpace(password) == "" {
		return "password is required", false
	}
	return "", true
}

func validateUsername(username string) (string, bool) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "username is required", false
	}
	if len(username) > maxUsernameLen {
		return "username is too long", false
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
		default:
			return "username contains invalid characters", false
		}
	}
	return "", true
}

func validateEmail(email string) (string, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "email is required", false
	}
	if len(email) > maxEmailLen {
		return "email is too long", false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.Count(email, "@") != 1 {
		return "email is invalid", false
	}
	if !strings.Contains(email[at+1:], ".") {
		return "email is invalid", false
	}
	return "", true
}

func validateLoginInput(username, email, password string) (string, bool) {
	if strings.TrimSpace(username) == "" && strings.TrimSpace(email) == "" {
		return "username or email is required", false
	}
	if strings.TrimSpace(password) == "" {
		return "password is required", false
	}
	return "", true
}

func validateChangePasswordInput(oldPassword, newPassword string) (string, bool) {
	if strings.TrimSpace(oldPassword) == "" {
		return "oldPassword is required", false
	}
	if strings.TrimSpace(newPassword) == "" {
		return "newPassword is required", false
	}
	if oldPassword == newPassword {
		return "newPassword must differ from oldPassword", false
	}
	return "", true
}

func validateUpdateProfileInput(req updateProfileRequest) (string, bool) {
	if req.DisplayName == nil && req.Email == nil {
		return "at least one of displayName or email is required", false
	}
	if req.DisplayName != nil {
		if strings.TrimSpace(*req.DisplayName) == "" {
			return "displayName must not be empty", false
		}
		if len(*req.DisplayName) > maxDisplayNameLen {
			return "displayName is too long", false
		}
	}
	if req.Email != nil {
		if msg, ok := validateEmail(*req.Email); !ok {
			return msg, false
		}
	}
	return "", true
}
