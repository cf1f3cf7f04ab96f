// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package semantic

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/traylinx/switchroute/internal/model"
	"github.com/traylinx/switchroute/internal/routing"
)

// routesFile is the on-disk shape of a semantic routes file.
type routesFile struct {
	Routes []routing.SemanticRoute `yaml:"routes"`
}

// LoadRoutesFile reads server-default semantic routes from a YAML file.
func LoadRoutesFile(path string) ([]routing.SemanticRoute, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	var parsed routesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse routes file %s: %w", path, err)
	}
	if err := routing.ValidateRoutes(parsed.Routes); err != nil {
		return nil, fmt.Errorf("routes file %s: %w", path, err)
	}
	return parsed.Routes, nil
}

// DefaultRoutes returns the built-in routes used by the chat endpoint when no
// routes file is configured: short conversational openers that a weak model
// handles fine.
func DefaultRoutes() []routing.SemanticRoute {
	return []routing.SemanticRoute{
		{
			Name:       "greeting",
			TargetTier: model.TierWeak,
			Utterances: []string{
				"Hi",
				"Hello",
				"Hey",
				"Hola",
				"Bonjour",
				"Konnichiwa",
				"Salam",
				"Ciao",
			},
		},
		{
			Name:       "ask_to_ask",
			TargetTier: model.TierWeak,
			Utterances: []string{
				"can you help me?",
				"i need help.",
				"please help.",
				"can you assist me?",
				"i have a question.",
				"may I ask a question?",
				"can you answer my question?",
				"can I ask for help?",
				"will you be able to assist me?",
				"is it okay if I ask something?",
				"can you respond to my queries?",
				"meri madad kar sakte ho?",
				"kya tum meri madad kar sakte ho?",
				"main tumse kuch pooch sakta hoon?",
			},
		},
	}
}
