//go:build fitz

package main

import (
	"github.com/pyhub-apps/docview-golang/pkg/document"
	"github.com/pyhub-apps/docview-golang/pkg/engine"
)

func init() {
	engineOptions = append(engineOptions, document.WithPreferredHandler(engine.FitzHandler()))
}
