package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contact struct {
	Name   string `json:"fullName" validate:"required,max=10"`
	Phone  string `json:"phone" validate:"required,mobile"`
	Email  string `json:"email" validate:"required,mailbox"`
	Gender string `json:"gender" validate:"omitempty,oneof=Male Female"`
}

func TestValidate_OK(t *testing.T) {
	v := New()
	err := v.Validate(contact{Name: "An", Phone: "0901234567", Email: "an@example.com"})
	assert.NoError(t, err)
}

func TestValidate_FieldErrors(t *testing.T) {
	v := New()
	base := contact{Name: "An", Phone: "0901234567", Email: "an@example.com"}

	tests := []struct {
		name  string
		edit  func(c *contact)
		field string
	}{
		{"missing name", func(c *contact) { c.Name = "" }, "fullName"},
		{"long name", func(c *contact) { c.Name = "abcdefghijk" }, "fullName"},
		{"phone without leading zero", func(c *contact) { c.Phone = "901234567" }, "phone"},
		{"phone too short", func(c *contact) { c.Phone = "01234567" }, "phone"},
		{"phone too long", func(c *contact) { c.Phone = "012345678901" }, "phone"},
		{"email without domain", func(c *contact) { c.Email = "an@" }, "email"},
		{"email without at", func(c *contact) { c.Email = "an.example.com" }, "email"},
		{"bad gender", func(c *contact) { c.Gender = "male" }, "gender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.edit(&c)
			err := v.Validate(c)
			var fe *FieldError
			require.True(t, errors.As(err, &fe), "expected FieldError, got %v", err)
			assert.Equal(t, tt.field, fe.Field)
			assert.NotEmpty(t, fe.Message)
		})
	}
}

func TestValidate_PhoneBounds(t *testing.T) {
	v := New()
	for _, p := range []string{"012345678", "0123456789", "01234567890"} {
		assert.NoError(t, v.Var("phone", p, "mobile"), p)
	}
}

func TestVar(t *testing.T) {
	v := New()
	err := v.Var("doctorId", "nope", "uuid")
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "doctorId must be a valid id", fe.Error())
}
