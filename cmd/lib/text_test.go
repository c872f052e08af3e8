package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textcorrector/pkg/correction"
)

var taiConverter = correction.ConverterFunc(func(s string) (string, error) {
	return strings.ReplaceAll(s, "台", "臺"), nil
})

func TestCorrectText(t *testing.T) {
	res, err := correctText("台北的台灣", `["台北"]`, "", taiConverter)
	require.NoError(t, err)
	assert.Equal(t, "台北的臺灣", res.Text)
	assert.Equal(t, [][2]int{{3, 4}}, res.Ranges)

	res, err = correctText("abc", "", "", taiConverter)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{}, res.Ranges)

	_, err = correctText("台", `[""]`, "", taiConverter)
	assert.Error(t, err)
}

func TestCorrectTextJSON(t *testing.T) {
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(correctTextJSON("x", "", "martian")), &resp))
	assert.Contains(t, resp["error"], "martian")

	out := correctTextJSON("", "[]", "s2t")
	assert.JSONEq(t, `{"text":"","ranges":[]}`, out)
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig("[processing]\nmax_concurrent = 2\n")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Processing.MaxConcurrent)
	assert.Equal(t, "opencc", cfg.Converter.Backend)

	_, err = parseConfig("[processing]\nmax_concurrent = 0\n")
	assert.Error(t, err)

	_, err = parseConfig("not = [toml")
	assert.Error(t, err)
}
