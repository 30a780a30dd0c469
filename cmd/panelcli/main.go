package main

import (
	"github.com/robotalks/panel.go/pkg/cli/sh"
	"github.com/robotalks/panel.go/pkg/env"

	_ "github.com/robotalks/panel.go/pkg/cli/cmds/panel"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
