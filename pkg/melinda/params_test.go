package melinda

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_SkipsAbsentValuesAndKeepsOrder(t *testing.T) {
	p := NewParams().Add("a", 1).Add("b", nil).Add("c", 2)
	assert.Equal(t, "a=1&c=2", p.Encode())
	assert.Equal(t, 2, p.Len())
}

func TestParams_FormatsTypes(t *testing.T) {
	var unsetString *string
	var unsetBool *bool
	set := "x"

	p := NewParams().
		Add("flagOn", true).
		Add("flagOff", false).
		Add("ptrOn", Bool(true)).
		Add("ptrUnset", unsetBool).
		Add("str", &set).
		Add("strUnset", unsetString).
		Add("list", []string{"2024-01-01", "2024-02-01"}).
		Add("emptyList", []string{}).
		Add("state", StateDone).
		Add("spaces", "a b&c")

	assert.Equal(t,
		"flagOn=1&flagOff=0&ptrOn=1&str=x&list=2024-01-01%2C2024-02-01&state=DONE&spaces=a+b%26c",
		p.Encode())
}

func TestParams_MergeCallerWinsAndKeepsDefaultPosition(t *testing.T) {
	defaults := NewParams().Add("cataloger", "LOAD")
	caller := NewParams().Add("noop", false).Add("cataloger", "TEST")

	merged := defaults.Merge(caller)
	assert.Equal(t, "cataloger=TEST&noop=0", merged.Encode())

	// defaults are not mutated
	assert.Equal(t, "cataloger=LOAD", defaults.Encode())
}

func TestParams_MergeIgnoresAbsentCallerValues(t *testing.T) {
	defaults := NewParams().Add("cataloger", "LOAD")
	caller := NewParams().Add("cataloger", optional("")).Add("noop", true)

	assert.Equal(t, "cataloger=LOAD&noop=1", defaults.Merge(caller).Encode())
	assert.Equal(t, "cataloger=LOAD", defaults.Merge(nil).Encode())
}

func TestParams_NilAndEmpty(t *testing.T) {
	var p *Params
	assert.Equal(t, "", p.Encode())
	assert.Equal(t, 0, p.Len())
	_, ok := p.Get("x")
	assert.False(t, ok)

	assert.Equal(t, "", NewParams().Encode())
	assert.Equal(t, "", NewParams().Add("skip", optionalInt(0)).Encode())
}

func TestParams_AddOverwritesInPlace(t *testing.T) {
	p := NewParams().Add("a", "1").Add("b", "2").Add("a", "3")
	assert.Equal(t, "a=3&b=2", p.Encode())
	v, ok := p.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}
