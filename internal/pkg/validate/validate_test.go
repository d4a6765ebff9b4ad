package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"min=8,max=72"`
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	err := Struct(&sample{NewPassword: "short"})
	assert.ErrorContains(t, err, "field 'token' failed 'required'")
	assert.ErrorContains(t, err, "field 'new_password' failed 'min'")
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(&sample{Token: "t", NewPassword: "longenough"}))
}

func TestVar_LenCountsCharacters(t *testing.T) {
	assert.NoError(t, Var("123456", "len=6"))
	assert.NoError(t, Var("abcdef", "len=6"))
	assert.NoError(t, Var("ééééèè", "len=6"))
	assert.Error(t, Var("12345", "len=6"))
	assert.Error(t, Var("1234567", "len=6"))
}
