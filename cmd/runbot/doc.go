// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Runbot starts the PT NAD alert bot inside the Python environment prepared by
setupenv.

# Usage

	$ runbot

It expects main.py and the environment directory (bot-venv, or the name in
the BOT_VENV environment variable) in the current directory, and runs
main.py with the environment's interpreter. The bot's standard streams are
attached to the terminal.

Runbot exits with the bot's exit code. On interrupt the bot receives SIGINT
and is killed if it does not stop within 10 seconds.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/botenv/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
