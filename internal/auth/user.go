// Package auth registers users, issues JWT access/refresh pairs and manages
// the caller's profile.
package auth

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"meal-planner/internal/apperr"
)

// User is an account. HashedPassword is never serialized.
type User struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	HashedPassword      *string   `json:"-"`
	Name                string    `json:"name"`
	AvatarURL           *string   `json:"avatar_url"`
	Provider            string    `json:"provider"`
	ServingsDefault     int       `json:"servings_default"`
	DietaryRestrictions []string  `json:"dietary_restrictions"`
	Allergens           []string  `json:"allergens"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries only the fields present in a PATCH body.
type ProfileUpdate struct {
	Name                *string   `json:"name"`
	AvatarURL           *string   `json:"avatar_url"`
	ServingsDefault     *int      `json:"servings_default"`
	DietaryRestrictions *[]string `json:"dietary_restrictions"`
	Allergens           *[]string `json:"allergens"`
}

const (
	minPassword = 8
	maxPassword = 128
	maxName     = 100
	maxServings = 20
)

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 255 {
		return apperr.Validation("email must be a valid address")
	}
	return nil
}

func validatePassword(p string) error {
	if n := utf8.RuneCountInString(p); n < minPassword || n > maxPassword {
		return apperr.Validation("password must be 8-128 characters")
	}
	return nil
}

func validateName(name string) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > maxName {
		return apperr.Validation("name must be 1-100 characters")
	}
	return nil
}

func (in *RegisterInput) validate() error {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	return validateName(in.Name)
}

func (u *ProfileUpdate) validate() error {
	if u.Name != nil {
		n := strings.TrimSpace(*u.Name)
		if err := validateName(n); err != nil {
			return err
		}
		u.Name = &n
	}
	if u.ServingsDefault != nil && (*u.ServingsDefault < 1 || *u.ServingsDefault > maxServings) {
		return apperr.Validation("servings_default must be between 1 and 20")
	}
	if u.AvatarURL != nil && len(*u.AvatarURL) > 2048 {
		return apperr.Validation("avatar_url is too long")
	}
	u.DietaryRestrictions = cleanList(u.DietaryRestrictions)
	u.Allergens = cleanList(u.Allergens)
	return nil
}

func cleanList(in *[]string) *[]string {
	if in == nil {
		return nil
	}
	out := []string{}
	for _, v := range *in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return &out
}

// apply copies the present fields onto u.
func (p ProfileUpdate) apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.AvatarURL != nil {
		if *p.AvatarURL == "" {
			u.AvatarURL = nil
		} else {
			u.AvatarURL = p.AvatarURL
		}
	}
	if p.ServingsDefault != nil {
		u.ServingsDefault = *p.ServingsDefault
	}
	if p.DietaryRestrictions != nil {
		u.DietaryRestrictions = *p.DietaryRestrictions
	}
	if p.Allergens != nil {
		u.Allergens = *p.Allergens
	}
}
