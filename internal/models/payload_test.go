package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexInt(t *testing.T) {
	tests := []struct {
		body string
		want int64
	}{
		{`7`, 7},
		{`"12"`, 12},
		{`" 3 "`, 3},
		{`4.0`, 4},
	}
	for _, tt := range tests {
		var n FlexInt
		require.NoError(t, json.Unmarshal([]byte(tt.body), &n), tt.body)
		assert.Equal(t, tt.want, n.Int64(), tt.body)
	}

	for _, bad := range []string{`"abc"`, `2.5`, `true`} {
		var n FlexInt
		assert.Error(t, json.Unmarshal([]byte(bad), &n), bad)
	}
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString  `json:"a"`
		B FlexString  `json:"b"`
		C *FlexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "user_1", "b": 42, "c": null}`), &v))

	assert.Equal(t, "user_1", v.A.String())
	assert.Equal(t, "42", v.B.String())
	assert.Nil(t, v.C)
}

func TestRawProfile(t *testing.T) {
	var p RawProfile
	require.NoError(t, json.Unmarshal([]byte(`"Sam"`), &p))
	assert.Equal(t, "Sam", p.Text)
	assert.Nil(t, p.FirstName)

	p = RawProfile{}
	require.NoError(t, json.Unmarshal([]byte(`{"first_name": "Sam", "email": "sam@example.com"}`), &p))
	assert.Empty(t, p.Text)
	require.NotNil(t, p.FirstName)
	assert.Equal(t, "Sam", *p.FirstName)
	assert.Equal(t, "sam@example.com", *p.Email)
}

func TestRawRanking_Aliases(t *testing.T) {
	var r RawRanking
	require.NoError(t, json.Unmarshal([]byte(`{"id": "9", "rank": "2", "userId": 5, "userName": "kim"}`), &r))

	require.NotNil(t, r.ID)
	assert.Equal(t, int64(9), r.ID.Int64())
	assert.Equal(t, int64(2), r.Rank.Int64())
	assert.Equal(t, "5", r.UserIDCamel.String())
	assert.Equal(t, "kim", *r.UserNameCamel)
}
