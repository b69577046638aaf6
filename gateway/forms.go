package gateway

import (
	"strings"

	storeAuth "github.com/MrEthical07/storeAuth"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type loginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

func (f *loginForm) fields() map[string]*string {
	return map[string]*string{"username": &f.Username, "password": &f.Password, "from": &f.From}
}

func (f loginForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&f.Password, validation.Required, validation.Length(1, 256)),
	)
}

type signupForm struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (f *signupForm) fields() map[string]*string {
	return map[string]*string{"username": &f.Username, "email": &f.Email, "password": &f.Password}
}

func (f *signupForm) normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
}

func (f signupForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&f.Email, validation.Required, is.EmailFormat),
		validation.Field(&f.Password, validation.Required, validation.Length(6, 256)),
	)
}

type googleForm struct {
	IDToken     string `json:"idToken"`
	Credential  string `json:"credential"`
	AccountType string `json:"type"`
	From        string `json:"from"`
}

func (f *googleForm) fields() map[string]*string {
	return map[string]*string{"idToken": &f.IDToken, "credential": &f.Credential, "type": &f.AccountType, "from": &f.From}
}

// normalize folds the Google Identity Services "credential" field into IDToken.
func (f *googleForm) normalize() {
	if f.IDToken == "" {
		f.IDToken = f.Credential
	}
	if f.AccountType == "" {
		f.AccountType = string(storeAuth.RoleCustomer)
	}
}

func (f googleForm) Validate() error {
	roles := make([]any, len(storeAuth.Roles))
	for i, r := range storeAuth.Roles {
		roles[i] = string(r)
	}
	return validation.ValidateStruct(&f,
		validation.Field(&f.IDToken, validation.Required),
		validation.Field(&f.AccountType, validation.In(roles...)),
	)
}
