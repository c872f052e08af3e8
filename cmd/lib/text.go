package main

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"textcorrector/pkg/config"
	"textcorrector/pkg/converter"
	"textcorrector/pkg/correction"
	"textcorrector/pkg/protectedwords"
)

type textResponse struct {
	Text   string   `json:"text"`
	Ranges [][2]int `json:"ranges"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// parseConfig layers the given TOML over the defaults.
func parseConfig(data string) (*config.AppConfig, error) {
	cfg := config.DefaultConfig()
	if err := toml.Unmarshal([]byte(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config toml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func correctText(text, wordsJSON, mode string, conv correction.Converter) (textResponse, error) {
	var words []string
	if wordsJSON != "" {
		var err error
		if words, err = protectedwords.Decode([]byte(wordsJSON)); err != nil {
			return textResponse{}, err
		}
	}
	if conv == nil {
		if mode == "" {
			mode = config.DefaultConfig().Converter.Mode
		}
		m, err := converter.ParseMode(mode)
		if err != nil {
			return textResponse{}, err
		}
		if conv, err = converter.New(m); err != nil {
			return textResponse{}, err
		}
	}

	res, err := correction.Correct(text, words, conv)
	if err != nil {
		return textResponse{}, err
	}
	out := textResponse{Text: res.Text, Ranges: make([][2]int, 0, len(res.Ranges))}
	for _, r := range res.Ranges {
		out.Ranges = append(out.Ranges, [2]int{r.Start, r.End})
	}
	return out, nil
}

func correctTextJSON(text, wordsJSON, mode string) string {
	var payload any
	res, err := correctText(text, wordsJSON, mode, nil)
	if err != nil {
		payload = errorResponse{Error: err.Error()}
	} else {
		payload = res
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return `{"error":"encoding failed"}`
	}
	return string(data)
}
